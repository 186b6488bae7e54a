package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Optimizer 参数更新器接口
//
// 实现按参数在切片中的位置维护内部状态（动量、二阶矩等），
// 因此同一个实例必须始终搭配同一网络的参数列表使用。
// 学习率可在训练中途调整，用于配合回调式的学习率衰减。
type Optimizer interface {
	Name() string
	Step(params []*Param)
	LearningRate() float64
	SetLearningRate(lr float64)
}

// NewOptimizer 按名称构造更新器，weightDecay 仅对 adamw 生效
func NewOptimizer(name string, lr, weightDecay float64) (Optimizer, error) {
	switch name {
	case "", "adam":
		return NewAdam(lr), nil
	case "adamw":
		return NewAdamW(lr, weightDecay), nil
	case "sgd":
		return NewSGD(lr), nil
	case "rmsprop":
		return NewRMSprop(lr), nil
	default:
		return nil, fmt.Errorf("nn: unknown optimizer %q", name)
	}
}

// OptimizerNames 返回支持的更新器名称
func OptimizerNames() []string {
	return []string{"adam", "adamw", "sgd", "rmsprop"}
}

// SGD 带动量的随机梯度下降
type SGD struct {
	lr       float64
	Momentum float64

	v []*mat.Dense
}

func NewSGD(lr float64) *SGD {
	return &SGD{lr: lr, Momentum: 0.9}
}

func (o *SGD) Name() string               { return "sgd" }
func (o *SGD) LearningRate() float64      { return o.lr }
func (o *SGD) SetLearningRate(lr float64) { o.lr = lr }

func (o *SGD) Step(params []*Param) {
	if len(o.v) != len(params) {
		o.v = stateLike(params)
	}
	for i, p := range params {
		r, c := p.W.Dims()
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				v := o.Momentum*o.v[i].At(a, b) - o.lr*p.Grad.At(a, b)
				o.v[i].Set(a, b, v)
				p.W.Set(a, b, p.W.At(a, b)+v)
			}
		}
	}
}

// RMSprop 二阶矩滑动平均更新器
type RMSprop struct {
	lr  float64
	Rho float64
	Eps float64

	acc []*mat.Dense
}

func NewRMSprop(lr float64) *RMSprop {
	return &RMSprop{lr: lr, Rho: 0.9, Eps: 1e-7}
}

func (o *RMSprop) Name() string               { return "rmsprop" }
func (o *RMSprop) LearningRate() float64      { return o.lr }
func (o *RMSprop) SetLearningRate(lr float64) { o.lr = lr }

func (o *RMSprop) Step(params []*Param) {
	if len(o.acc) != len(params) {
		o.acc = stateLike(params)
	}
	for i, p := range params {
		r, c := p.W.Dims()
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				g := p.Grad.At(a, b)
				acc := o.Rho*o.acc[i].At(a, b) + (1-o.Rho)*g*g
				o.acc[i].Set(a, b, acc)
				p.W.Set(a, b, p.W.At(a, b)-o.lr*g/(math.Sqrt(acc)+o.Eps))
			}
		}
	}
}

// Adam 一阶与二阶矩自适应更新器，带偏差修正
type Adam struct {
	lr    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	// adamw 模式下的解耦权重衰减系数，普通 adam 为 0
	WeightDecay float64
	decoupled   bool

	t int
	m []*mat.Dense
	v []*mat.Dense
}

func NewAdam(lr float64) *Adam {
	return &Adam{lr: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-7}
}

// NewAdamW 构造解耦权重衰减版 Adam，偏置与归一化参数不参与衰减
func NewAdamW(lr, weightDecay float64) *Adam {
	return &Adam{lr: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-7, WeightDecay: weightDecay, decoupled: true}
}

func (o *Adam) Name() string {
	if o.decoupled {
		return "adamw"
	}
	return "adam"
}

func (o *Adam) LearningRate() float64      { return o.lr }
func (o *Adam) SetLearningRate(lr float64) { o.lr = lr }

func (o *Adam) Step(params []*Param) {
	if len(o.m) != len(params) {
		o.m = stateLike(params)
		o.v = stateLike(params)
		o.t = 0
	}
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for i, p := range params {
		r, c := p.W.Dims()
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				g := p.Grad.At(a, b)
				m := o.Beta1*o.m[i].At(a, b) + (1-o.Beta1)*g
				v := o.Beta2*o.v[i].At(a, b) + (1-o.Beta2)*g*g
				o.m[i].Set(a, b, m)
				o.v[i].Set(a, b, v)
				w := p.W.At(a, b) - o.lr*(m/c1)/(math.Sqrt(v/c2)+o.Eps)
				if o.decoupled && !p.NoDecay {
					w -= o.lr * o.WeightDecay * p.W.At(a, b)
				}
				p.W.Set(a, b, w)
			}
		}
	}
}

func stateLike(params []*Param) []*mat.Dense {
	out := make([]*mat.Dense, len(params))
	for i, p := range params {
		r, c := p.W.Dims()
		out[i] = mat.NewDense(r, c, nil)
	}
	return out
}

var (
	_ Optimizer = (*SGD)(nil)
	_ Optimizer = (*RMSprop)(nil)
	_ Optimizer = (*Adam)(nil)
)
