// Package nn 是纯 Go 的小型神经网络引擎：层、激活、初始化、优化器与网络拓扑。
//
// 核心思想：
//   - 矩阵一律使用 gonum/mat，行为样本、列为特征
//   - 前向缓存反向所需的中间量，Backward 只在训练路径上调用
//   - 网络输出层为线性 Dense，softmax 与交叉熵在网络层合并求导
//
// 工程特征：
//   - 所有随机性来自显式传入的 *rand.Rand，同种子逐位复现
//   - 拓扑与权重可序列化为 JSON，训练检查点与落盘工件共用一种格式
package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SELU 固定常数（自归一化网络）
const (
	seluLambda = 1.0507009873554805
	seluAlpha  = 1.6732632423543772
)

// leakySlope 是 leaky_relu 的负半轴斜率
const leakySlope = 0.2

// actFunc 是逐元素激活函数及其导数（以原始输入 x 为自变量）。
type actFunc struct {
	fn    func(float64) float64
	deriv func(float64) float64
}

var activations = map[string]actFunc{
	"linear": {
		fn:    func(x float64) float64 { return x },
		deriv: func(x float64) float64 { return 1 },
	},
	"relu": {
		fn: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		deriv: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	"leaky_relu": {
		fn: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return leakySlope * x
		},
		deriv: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return leakySlope
		},
	},
	"elu": {
		fn: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return math.Exp(x) - 1
		},
		deriv: func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return math.Exp(x)
		},
	},
	"selu": {
		fn: func(x float64) float64 {
			if x > 0 {
				return seluLambda * x
			}
			return seluLambda * seluAlpha * (math.Exp(x) - 1)
		},
		deriv: func(x float64) float64 {
			if x > 0 {
				return seluLambda
			}
			return seluLambda * seluAlpha * math.Exp(x)
		},
	},
	"gelu": {
		// 精确形式：x·Φ(x)，Φ 为标准正态 CDF
		fn: func(x float64) float64 {
			return 0.5 * x * (1 + math.Erf(x/math.Sqrt2))
		},
		deriv: func(x float64) float64 {
			cdf := 0.5 * (1 + math.Erf(x/math.Sqrt2))
			pdf := math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
			return cdf + x*pdf
		},
	},
	"swish": {
		fn: func(x float64) float64 { return x * sigmoid(x) },
		deriv: func(x float64) float64 {
			s := sigmoid(x)
			return s + x*s*(1-s)
		},
	},
	"sigmoid": {
		fn: sigmoid,
		deriv: func(x float64) float64 {
			s := sigmoid(x)
			return s * (1 - s)
		},
	},
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// lookupActivation 按名称取激活函数，未知名称返回错误。
func lookupActivation(name string) (actFunc, error) {
	if name == "" {
		name = "linear"
	}
	a, ok := activations[name]
	if !ok {
		return actFunc{}, fmt.Errorf("nn: unknown activation %q", name)
	}
	return a, nil
}

// ActivationNames 返回全部可用激活函数名（超参搜索空间校验使用）。
func ActivationNames() []string {
	return []string{"relu", "elu", "selu", "gelu", "swish", "leaky_relu", "sigmoid", "linear"}
}

// applyActivation 逐元素应用激活，结果写入 dst（dst 可与 src 相同）。
func applyActivation(a actFunc, src, dst *mat.Dense) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, a.fn(src.At(i, j)))
		}
	}
}

// activationGrad 计算 dL/dZ = dL/dY ⊙ act'(z)，返回新矩阵。
func activationGrad(a actFunc, z, dY *mat.Dense) *mat.Dense {
	r, c := z.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, dY.At(i, j)*a.deriv(z.At(i, j)))
		}
	}
	return out
}

// SoftmaxRows 对每一行做 softmax（数值稳定版本），返回新矩阵。
func SoftmaxRows(logits *mat.Dense) *mat.Dense {
	r, c := logits.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		maxv := math.Inf(-1)
		for j := 0; j < c; j++ {
			if v := logits.At(i, j); v > maxv {
				maxv = v
			}
		}
		sum := 0.0
		for j := 0; j < c; j++ {
			e := math.Exp(logits.At(i, j) - maxv)
			out.Set(i, j, e)
			sum += e
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, out.At(i, j)/sum)
		}
	}
	return out
}

// Activation 独立激活层。
//
// Dense 自带激活时无需此层；线性全连接后接归一化再激活的拓扑
// （Dense → BatchNorm → act）通过它把激活拆成显式一步。
type Activation struct {
	Name string

	act actFunc
	x   *mat.Dense
}

// NewActivation 构造独立激活层
func NewActivation(name string) (*Activation, error) {
	a, err := lookupActivation(name)
	if err != nil {
		return nil, err
	}
	return &Activation{Name: name, act: a}, nil
}

func (a *Activation) Kind() string            { return "activation" }
func (a *Activation) OutputDim(inDim int) int { return inDim }
func (a *Activation) Params() []*Param        { return nil }
func (a *Activation) Penalty() float64        { return 0 }

func (a *Activation) Forward(x *mat.Dense, training bool) *mat.Dense {
	if training {
		a.x = x
	}
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	applyActivation(a.act, x, y)
	return y
}

func (a *Activation) Backward(grad *mat.Dense) *mat.Dense {
	return activationGrad(a.act, a.x, grad)
}

var _ Layer = (*Activation)(nil)
