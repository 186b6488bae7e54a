package model

import (
	"math/rand"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/nn"
)

// NewBERTFusion 成员十二：双分支融合网络。
//
// 表格分支处理标准化特征（64 → 32，relu），文本分支处理临床叙述的
// 外部嵌入向量（128(relu) → Dropout 0.3 → 64(relu)），两路拼接为
// 96 维后过融合头 64(gelu) → Dropout 0.2 → 输出层（L2 0.001）。
// auxDim 是外部嵌入维度，非正值取 core.DefaultEmbeddingDim。
// Adam 0.0005，声明为 KindFusion，预测时必须提供 Batch.Aux。
func NewBERTFusion(seed int64, auxDim int) (*nn.Network, error) {
	if auxDim <= 0 {
		auxDim = core.DefaultEmbeddingDim
	}
	rng := rand.New(rand.NewSource(seed))

	t1, err := nn.NewDense(rng, core.NumFeatures, 64, "relu")
	if err != nil {
		return nil, err
	}
	t2, err := nn.NewDense(rng, 64, 32, "relu")
	if err != nil {
		return nil, err
	}

	a1, err := nn.NewDense(rng, auxDim, 128, "relu")
	if err != nil {
		return nil, err
	}
	a2, err := nn.NewDense(rng, 128, 64, "relu")
	if err != nil {
		return nil, err
	}

	h1, err := nn.NewDense(rng, 32+64, 64, "gelu")
	if err != nil {
		return nil, err
	}
	out, err := nn.NewDense(rng, 64, core.NumClasses, "", nn.WithL2(0.001))
	if err != nil {
		return nil, err
	}

	return nn.NewFusionNetwork(NameBERTFusion, nn.NewAdam(0.0005),
		[]nn.Layer{t1, t2},
		[]nn.Layer{a1, nn.NewDropout(rng, 0.3), a2},
		[]nn.Layer{h1, nn.NewDropout(rng, 0.2), out})
}
