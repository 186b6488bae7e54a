// Package search 提供顺序随机超参数搜索。
//
// 核心思想：
//   - 试验配置与固定花名册走同一条声明式构建路径
//     （config.Build("spec", ...)），结构语义不会悄悄分叉
//   - 试验严格串行，每次试验独占设备租约、结束即释放；
//     调优器只保留最优配置，不持有任何试验网络的引用，
//     上千次试验不会积累内存
//   - 给定种子时抽样序列与试验结果完全可复现
package search

import (
	"math"
	"math/rand"
)

// Space 描述随机搜索的超参数空间。
// 零值字段在调优器里回落到 DefaultSpace 的同名字段。
type Space struct {
	MinLayers int // 隐藏层数下界
	MaxLayers int // 隐藏层数上界（含）

	WidthMin  int // 层宽下界
	WidthMax  int // 层宽上界（含）
	WidthStep int // 层宽步长

	Activations []string // 候选激活函数

	DropoutMax  float64 // 丢弃率上界（含）
	DropoutStep float64 // 丢弃率步长，从 0 起

	LRMin float64 // 学习率下界，对数均匀抽样
	LRMax float64 // 学习率上界

	Optimizers  []string // 候选优化器
	WeightDecay float64  // 抽到 adamw 时使用的解耦衰减

	L2Min float64 // L2 正则下界，对数均匀抽样
	L2Max float64 // L2 正则上界

	Norms []string // 归一化方案（"" 表示不用）
	Inits []string // 权重初始化方案

	BatchSizes []int // 候选小批量大小（训练器参数）
}

// DefaultSpace 返回标准搜索空间。
func DefaultSpace() Space {
	return Space{
		MinLayers:   2,
		MaxLayers:   8,
		WidthMin:    16,
		WidthMax:    512,
		WidthStep:   16,
		Activations: []string{"relu", "elu", "selu", "gelu", "swish", "leaky_relu"},
		DropoutMax:  0.6,
		DropoutStep: 0.05,
		LRMin:       1e-5,
		LRMax:       1e-2,
		Optimizers:  []string{"adam", "adamw", "sgd", "rmsprop"},
		WeightDecay: 0.01,
		L2Min:       1e-6,
		L2Max:       1e-2,
		Norms:       []string{"", "batch", "layer"},
		Inits:       []string{"glorot_uniform", "he_normal", "lecun_normal"},
		BatchSizes:  []int{16, 32, 64, 128, 256},
	}
}

// Candidate 是一次试验抽到的完整配置。
// Model 直接交给 config.Build("spec", ...)，BatchSize 交给训练器。
type Candidate struct {
	Model     map[string]interface{}
	BatchSize int
}

// withDefaults 用默认空间补齐零值字段。
func (s Space) withDefaults() Space {
	def := DefaultSpace()
	if s.MinLayers <= 0 {
		s.MinLayers = def.MinLayers
	}
	if s.MaxLayers < s.MinLayers {
		s.MaxLayers = def.MaxLayers
		if s.MaxLayers < s.MinLayers {
			s.MaxLayers = s.MinLayers
		}
	}
	if s.WidthMin <= 0 {
		s.WidthMin = def.WidthMin
	}
	if s.WidthMax < s.WidthMin {
		s.WidthMax = def.WidthMax
		if s.WidthMax < s.WidthMin {
			s.WidthMax = s.WidthMin
		}
	}
	if s.WidthStep <= 0 {
		s.WidthStep = def.WidthStep
	}
	if len(s.Activations) == 0 {
		s.Activations = def.Activations
	}
	if s.DropoutMax <= 0 {
		s.DropoutMax = def.DropoutMax
	}
	if s.DropoutStep <= 0 {
		s.DropoutStep = def.DropoutStep
	}
	if s.LRMin <= 0 {
		s.LRMin = def.LRMin
	}
	if s.LRMax < s.LRMin {
		s.LRMax = math.Max(def.LRMax, s.LRMin)
	}
	if len(s.Optimizers) == 0 {
		s.Optimizers = def.Optimizers
	}
	if s.WeightDecay <= 0 {
		s.WeightDecay = def.WeightDecay
	}
	if s.L2Min <= 0 {
		s.L2Min = def.L2Min
	}
	if s.L2Max < s.L2Min {
		s.L2Max = math.Max(def.L2Max, s.L2Min)
	}
	if len(s.Norms) == 0 {
		s.Norms = def.Norms
	}
	if len(s.Inits) == 0 {
		s.Inits = def.Inits
	}
	if len(s.BatchSizes) == 0 {
		s.BatchSizes = def.BatchSizes
	}
	return s
}

// Sample 从空间里抽一份试验配置。
// 调用方负责补上 name 与 seed 字段。
func (s Space) Sample(rng *rand.Rand) Candidate {
	layers := s.MinLayers + rng.Intn(s.MaxLayers-s.MinLayers+1)
	widths := make([]int, layers)
	widthChoices := (s.WidthMax-s.WidthMin)/s.WidthStep + 1
	for i := range widths {
		widths[i] = s.WidthMin + s.WidthStep*rng.Intn(widthChoices)
	}
	dropSteps := int(math.Round(s.DropoutMax/s.DropoutStep)) + 1
	dropout := s.DropoutStep * float64(rng.Intn(dropSteps))

	cfg := map[string]interface{}{
		"widths":        widths,
		"activation":    choice(rng, s.Activations),
		"dropout":       dropout,
		"learning_rate": logUniform(rng, s.LRMin, s.LRMax),
		"l2":            logUniform(rng, s.L2Min, s.L2Max),
		"norm":          choice(rng, s.Norms),
		"init":          choice(rng, s.Inits),
	}
	opt := choice(rng, s.Optimizers)
	cfg["optimizer"] = opt
	if opt == "adamw" {
		cfg["weight_decay"] = s.WeightDecay
	}
	return Candidate{Model: cfg, BatchSize: choice(rng, s.BatchSizes)}
}

func choice[T any](rng *rand.Rand, xs []T) T {
	return xs[rng.Intn(len(xs))]
}

// logUniform 在 [lo, hi] 上做对数均匀抽样。
func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	l, h := math.Log(lo), math.Log(hi)
	return math.Exp(l + rng.Float64()*(h-l))
}
