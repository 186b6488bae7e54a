package model

import (
	"math/rand"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/nn"
)

// 实体嵌入成员的嵌入表参数。
// 级别编码为 1..NumLevels，词表留出下标 0，宽度为 NumLevels+1。
const (
	embeddingVocab = core.NumLevels + 1
	embeddingWidth = 3
)

// NewEntityEmbedding 成员十一：实体嵌入网络。
//
// 每个特征列各持一张 4 × 3 嵌入表，查表后拼接为 30 维稠密向量，
// 再过 128(relu) → Dropout 0.3 → 64(relu)。输入为整数级别矩阵
// 而非标准化特征，因此声明为 KindEmbedding，由网络路由取 Batch.Raw。
// Adam 0.001。
func NewEntityEmbedding(seed int64) (*nn.Network, error) {
	rng := rand.New(rand.NewSource(seed))
	bank, err := nn.NewEmbeddingBank(rng, core.NumFeatures, embeddingVocab, embeddingWidth)
	if err != nil {
		return nil, err
	}
	concat := core.NumFeatures * embeddingWidth
	d1, err := nn.NewDense(rng, concat, 128, "relu")
	if err != nil {
		return nil, err
	}
	d2, err := nn.NewDense(rng, 128, 64, "relu")
	if err != nil {
		return nil, err
	}
	out, err := nn.NewDense(rng, 64, core.NumClasses, "")
	if err != nil {
		return nil, err
	}
	return nn.NewNetwork(NameEmbeddingNet, core.KindEmbedding, nn.NewAdam(0.001),
		bank, d1, nn.NewDropout(rng, 0.3), d2, out)
}
