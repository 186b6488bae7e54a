package model

import (
	"math/rand"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/nn"
)

// 花名册成员名，工件目录与日志共用
const (
	NameShallowWide         = "shallow_wide"
	NameDeepNarrow          = "deep_narrow"
	NamePyramidBN           = "pyramid_bn"
	NameDiamondSELU         = "diamond_selu"
	NameResidualBlock       = "residual_block"
	NameSwishLayerNorm      = "swish_layer_norm"
	NameMixedActivation     = "mixed_activation"
	NameHeavyRegularization = "heavy_regularization"
	NameAttentionNet        = "attention_net"
	NameVeryDeep            = "very_deep"
	NameEmbeddingNet        = "embedding_net"
	NameBERTFusion          = "bert_fusion"
)

// stack 是逐层堆叠的构建辅助，首个错误黏住后续调用
type stack struct {
	rng    *rand.Rand
	in     int
	layers []nn.Layer
	err    error
}

func newStack(seed int64, in int) *stack {
	return &stack{rng: rand.New(rand.NewSource(seed)), in: in}
}

func (s *stack) dense(w int, act string, opts ...nn.DenseOption) *stack {
	if s.err != nil {
		return s
	}
	d, err := nn.NewDense(s.rng, s.in, w, act, opts...)
	if err != nil {
		s.err = err
		return s
	}
	s.layers = append(s.layers, d)
	s.in = w
	return s
}

func (s *stack) dropout(rate float64) *stack {
	if s.err == nil {
		s.layers = append(s.layers, nn.NewDropout(s.rng, rate))
	}
	return s
}

func (s *stack) alphaDropout(rate float64) *stack {
	if s.err == nil {
		s.layers = append(s.layers, nn.NewAlphaDropout(s.rng, rate))
	}
	return s
}

func (s *stack) batchNorm() *stack {
	if s.err == nil {
		s.layers = append(s.layers, nn.NewBatchNorm(s.in))
	}
	return s
}

func (s *stack) layerNorm() *stack {
	if s.err == nil {
		s.layers = append(s.layers, nn.NewLayerNorm(s.in))
	}
	return s
}

func (s *stack) activation(name string) *stack {
	if s.err != nil {
		return s
	}
	a, err := nn.NewActivation(name)
	if err != nil {
		s.err = err
		return s
	}
	s.layers = append(s.layers, a)
	return s
}

func (s *stack) prelu() *stack {
	if s.err == nil {
		s.layers = append(s.layers, nn.NewPReLU(s.in))
	}
	return s
}

// residualBlock 追加一个保宽残差块：x + inner(x) 后过 outAct。
// 内部为两层全连接，第一层带 innerAct，第二层线性。
func (s *stack) residualBlock(innerAct, outAct string) *stack {
	if s.err != nil {
		return s
	}
	d1, err := nn.NewDense(s.rng, s.in, s.in, innerAct)
	if err != nil {
		s.err = err
		return s
	}
	d2, err := nn.NewDense(s.rng, s.in, s.in, "")
	if err != nil {
		s.err = err
		return s
	}
	res, err := nn.NewResidual(outAct, d1, d2)
	if err != nil {
		s.err = err
		return s
	}
	s.layers = append(s.layers, res)
	return s
}

// featureGate 追加特征门控块：门控分支 in → hidden(relu) → in(sigmoid)，
// 输出与输入逐元素相乘，宽度不变。
func (s *stack) featureGate(hidden int) *stack {
	if s.err != nil {
		return s
	}
	g1, err := nn.NewDense(s.rng, s.in, hidden, "relu")
	if err != nil {
		s.err = err
		return s
	}
	g2, err := nn.NewDense(s.rng, hidden, s.in, "sigmoid")
	if err != nil {
		s.err = err
		return s
	}
	gate, err := nn.NewFeatureGate(g1, g2)
	if err != nil {
		s.err = err
		return s
	}
	s.layers = append(s.layers, gate)
	return s
}

// build 追加线性输出层并组装网络
func (s *stack) build(name string, opt nn.Optimizer) (*nn.Network, error) {
	if s.err != nil {
		return nil, s.err
	}
	out, err := nn.NewDense(s.rng, s.in, core.NumClasses, "")
	if err != nil {
		return nil, err
	}
	s.layers = append(s.layers, out)
	return nn.NewNetwork(name, core.KindTabular, opt, s.layers...)
}

// NewShallowWide 成员一：宽而浅。
// 256(relu) → Dropout 0.3 → 128(relu)，Adam 0.001。
func NewShallowWide(seed int64) (*nn.Network, error) {
	return newStack(seed, core.NumFeatures).
		dense(256, "relu").
		dropout(0.3).
		dense(128, "relu").
		build(NameShallowWide, nn.NewAdam(0.001))
}

// NewDeepNarrow 成员二：窄而深，六层 64(elu) 带 L2 0.001，Adam 0.0005。
// 纯堆叠结构，走声明式构建路径。
func NewDeepNarrow(seed int64) (*nn.Network, error) {
	return Spec{
		Name:       NameDeepNarrow,
		Widths:     []int{64, 64, 64, 64, 64, 64},
		Activation: "elu",
		L2:         0.001,
		LR:         0.0005,
		Seed:       seed,
	}.Build()
}

// NewPyramidBN 成员三：金字塔收窄，每层线性输出过批归一化再过 gelu。
// 512 → 256 → 128 → 64，Adam 0.001。
func NewPyramidBN(seed int64) (*nn.Network, error) {
	return Spec{
		Name:       NamePyramidBN,
		Widths:     []int{512, 256, 128, 64},
		Activation: "gelu",
		Norm:       "batch",
		LR:         0.001,
		Seed:       seed,
	}.Build()
}

// NewDiamondSELU 成员四：菱形自归一化网络。
// 64 → 128 → 256 → 128 → 64，selu 搭配 lecun_normal 初始化与
// AlphaDropout 0.1，Adam 0.0008。
func NewDiamondSELU(seed int64) (*nn.Network, error) {
	s := newStack(seed, core.NumFeatures)
	for _, w := range []int{64, 128, 256, 128, 64} {
		s.dense(w, "selu", nn.WithInit(nn.InitLecunNormal)).alphaDropout(0.1)
	}
	return s.build(NameDiamondSELU, nn.NewAdam(0.0008))
}

// NewResidualBlock 成员五：残差结构。
// 入口 128(relu, L2 5e-4)，两个保宽残差块，收尾 64(relu)，Adam 0.001。
func NewResidualBlock(seed int64) (*nn.Network, error) {
	return newStack(seed, core.NumFeatures).
		dense(128, "relu", nn.WithL2(5e-4)).
		residualBlock("relu", "relu").
		residualBlock("relu", "relu").
		dense(64, "relu").
		build(NameResidualBlock, nn.NewAdam(0.001))
}

// NewSwishLayerNorm 成员六：层归一化加 swish，AdamW 解耦衰减 0.01。
func NewSwishLayerNorm(seed int64) (*nn.Network, error) {
	s := newStack(seed, core.NumFeatures)
	for i := 0; i < 2; i++ {
		s.dense(192, "").layerNorm().activation("swish").dropout(0.2)
	}
	s.dense(96, "").layerNorm().activation("swish")
	return s.build(NameSwishLayerNorm, nn.NewAdamW(0.001, 0.01))
}

// NewMixedActivation 成员七：逐层换激活。
// 128(leaky_relu) → 96(elu) → 64(gelu) → 48(swish) → 32(relu)，
// 第二与第四层后接 Dropout 0.25，Adam 0.0007。
func NewMixedActivation(seed int64) (*nn.Network, error) {
	return newStack(seed, core.NumFeatures).
		dense(128, "leaky_relu").
		dense(96, "elu").
		dropout(0.25).
		dense(64, "gelu").
		dense(48, "swish").
		dropout(0.25).
		dense(32, "relu").
		build(NameMixedActivation, nn.NewAdam(0.0007))
}

// NewHeavyRegularization 成员八：强正则。
// 每层 L1 与 L2 均为 0.001，失活率逐层递减 0.5/0.4/0.3，Adam 0.0005。
func NewHeavyRegularization(seed int64) (*nn.Network, error) {
	reg := nn.WithL1L2(0.001, 0.001)
	return newStack(seed, core.NumFeatures).
		dense(256, "relu", reg).
		dropout(0.5).
		dense(128, "relu", reg).
		dropout(0.4).
		dense(64, "relu", reg).
		dropout(0.3).
		build(NameHeavyRegularization, nn.NewAdam(0.0005))
}

// NewAttentionNet 成员九：输入特征门控。
// 门控分支 10 → 64(relu) → 10(sigmoid) 与输入相乘，
// 主干 128(relu) → Dropout 0.2 → 64(relu)，Adam 0.001。
func NewAttentionNet(seed int64) (*nn.Network, error) {
	return newStack(seed, core.NumFeatures).
		featureGate(64).
		dense(128, "relu").
		dropout(0.2).
		dense(64, "relu").
		build(NameAttentionNet, nn.NewAdam(0.001))
}

// NewVeryDeep 成员十：八层 PReLU 深网。
// 128/128/96/96/64/64/48/32，偶数层后接批归一化与 Dropout 0.15，
// Adam 0.0003。
func NewVeryDeep(seed int64) (*nn.Network, error) {
	s := newStack(seed, core.NumFeatures)
	for i, w := range []int{128, 128, 96, 96, 64, 64, 48, 32} {
		s.dense(w, "").prelu()
		if i%2 == 1 {
			s.batchNorm().dropout(0.15)
		}
	}
	return s.build(NameVeryDeep, nn.NewAdam(0.0003))
}
