// Package model 定义集成的十二个成员网络与通用的表格网络结构描述。
//
// 核心思想：
//   - 固定花名册成员逐一手工定义（结构各异，互补性来自差异）
//   - 简单的全连接堆叠走 Spec 声明式构建，随机搜索试验与
//     注册表工厂共用这一条路径
//   - 所有成员末层为线性全连接，softmax 由网络层面统一施加
package model

import (
	"fmt"
	"math/rand"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/nn"
)

// Spec 是表格类网络的声明式结构描述。
//
// 字段语义：
//   - Widths 为各隐藏层宽度，必填
//   - Norm 为 ""（无）、"batch" 或 "layer"，置于线性输出与激活之间
//   - Dropout > 0 时在每个隐藏层激活后插入失活层
//   - L1/L2 施加在每个隐藏层的权重矩阵上
//   - WeightDecay 仅当 Optimizer 为 adamw 时生效
type Spec struct {
	Name        string  `json:"name" yaml:"name"`
	InDim       int     `json:"in_dim,omitempty" yaml:"in_dim,omitempty"`
	Classes     int     `json:"classes,omitempty" yaml:"classes,omitempty"`
	Widths      []int   `json:"widths" yaml:"widths"`
	Activation  string  `json:"activation,omitempty" yaml:"activation,omitempty"`
	Dropout     float64 `json:"dropout,omitempty" yaml:"dropout,omitempty"`
	Norm        string  `json:"norm,omitempty" yaml:"norm,omitempty"`
	Init        string  `json:"init,omitempty" yaml:"init,omitempty"`
	L1          float64 `json:"l1,omitempty" yaml:"l1,omitempty"`
	L2          float64 `json:"l2,omitempty" yaml:"l2,omitempty"`
	Optimizer   string  `json:"optimizer,omitempty" yaml:"optimizer,omitempty"`
	LR          float64 `json:"learning_rate,omitempty" yaml:"learning_rate,omitempty"`
	WeightDecay float64 `json:"weight_decay,omitempty" yaml:"weight_decay,omitempty"`
	Seed        int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Build 按描述构造表格输入网络。
func (s Spec) Build() (*nn.Network, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("model: spec needs a name")
	}
	if len(s.Widths) == 0 {
		return nil, fmt.Errorf("model: spec %q has no hidden layers", s.Name)
	}
	if s.InDim <= 0 {
		s.InDim = core.NumFeatures
	}
	if s.Classes <= 0 {
		s.Classes = core.NumClasses
	}
	if s.Activation == "" {
		s.Activation = "relu"
	}
	if s.LR <= 0 {
		s.LR = 0.001
	}

	rng := rand.New(rand.NewSource(s.Seed))
	var layers []nn.Layer
	in := s.InDim
	for i, w := range s.Widths {
		if w <= 0 {
			return nil, fmt.Errorf("model: spec %q layer %d has width %d", s.Name, i, w)
		}
		var opts []nn.DenseOption
		if s.L1 > 0 || s.L2 > 0 {
			opts = append(opts, nn.WithL1L2(s.L1, s.L2))
		}
		if s.Init != "" {
			opts = append(opts, nn.WithInit(s.Init))
		}

		switch s.Norm {
		case "":
			d, err := nn.NewDense(rng, in, w, s.Activation, opts...)
			if err != nil {
				return nil, err
			}
			layers = append(layers, d)
		case "batch", "layer":
			d, err := nn.NewDense(rng, in, w, "", opts...)
			if err != nil {
				return nil, err
			}
			layers = append(layers, d)
			if s.Norm == "batch" {
				layers = append(layers, nn.NewBatchNorm(w))
			} else {
				layers = append(layers, nn.NewLayerNorm(w))
			}
			act, err := nn.NewActivation(s.Activation)
			if err != nil {
				return nil, err
			}
			layers = append(layers, act)
		default:
			return nil, fmt.Errorf("model: spec %q has unknown norm %q", s.Name, s.Norm)
		}

		if s.Dropout > 0 {
			layers = append(layers, nn.NewDropout(rng, s.Dropout))
		}
		in = w
	}

	out, err := nn.NewDense(rng, in, s.Classes, "")
	if err != nil {
		return nil, err
	}
	layers = append(layers, out)

	opt, err := nn.NewOptimizer(s.Optimizer, s.LR, s.WeightDecay)
	if err != nil {
		return nil, err
	}
	return nn.NewNetwork(s.Name, core.KindTabular, opt, layers...)
}
