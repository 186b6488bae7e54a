package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Residual 残差块
//
// 内部子层串联计算后与块输入逐元素相加，再过一次激活。
// 要求内部子层保持宽度不变，反向时梯度同时沿捷径与子层两条路径回传。
type Residual struct {
	Inner []Layer
	Act   string

	act actFunc
	s   *mat.Dense
}

// NewResidual 构造残差块，act 作用在相加之后
func NewResidual(act string, inner ...Layer) (*Residual, error) {
	if len(inner) == 0 {
		return nil, fmt.Errorf("nn: residual block needs at least one inner layer")
	}
	a, err := lookupActivation(act)
	if err != nil {
		return nil, err
	}
	return &Residual{Inner: inner, Act: act, act: a}, nil
}

func (r *Residual) Kind() string            { return "residual" }
func (r *Residual) OutputDim(inDim int) int { return inDim }

func (r *Residual) Forward(x *mat.Dense, training bool) *mat.Dense {
	h := x
	for _, l := range r.Inner {
		h = l.Forward(h, training)
	}
	rows, cols := x.Dims()
	s := mat.NewDense(rows, cols, nil)
	s.Add(x, h)
	y := mat.NewDense(rows, cols, nil)
	applyActivation(r.act, s, y)
	if training {
		r.s = s
	}
	return y
}

func (r *Residual) Backward(grad *mat.Dense) *mat.Dense {
	// 激活的梯度作用在相加结果上，之后兵分两路
	ds := activationGrad(r.act, r.s, grad)
	dInner := ds
	for i := len(r.Inner) - 1; i >= 0; i-- {
		dInner = r.Inner[i].Backward(dInner)
	}
	rows, cols := ds.Dims()
	dx := mat.NewDense(rows, cols, nil)
	dx.Add(ds, dInner)
	return dx
}

func (r *Residual) Params() []*Param {
	var ps []*Param
	for _, l := range r.Inner {
		ps = append(ps, l.Params()...)
	}
	return ps
}

func (r *Residual) Penalty() float64 {
	var p float64
	for _, l := range r.Inner {
		p += l.Penalty()
	}
	return p
}

// FeatureGate 特征门控块
//
// 门控分支从输入计算每个特征的权重（末层通常为 sigmoid 且宽度
// 与输入一致），输出为输入与门控权重的逐元素乘积。反向时梯度
// 沿直连与门控两条路径回传后求和。
type FeatureGate struct {
	Gate []Layer

	x *mat.Dense
	g *mat.Dense
}

// NewFeatureGate 构造门控块
func NewFeatureGate(gate ...Layer) (*FeatureGate, error) {
	if len(gate) == 0 {
		return nil, fmt.Errorf("nn: feature gate needs at least one gate layer")
	}
	return &FeatureGate{Gate: gate}, nil
}

func (f *FeatureGate) Kind() string            { return "feature_gate" }
func (f *FeatureGate) OutputDim(inDim int) int { return inDim }

func (f *FeatureGate) Forward(x *mat.Dense, training bool) *mat.Dense {
	g := x
	for _, l := range f.Gate {
		g = l.Forward(g, training)
	}
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	y.MulElem(x, g)
	if training {
		f.x = x
		f.g = g
	}
	return y
}

func (f *FeatureGate) Backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()

	dg := mat.NewDense(rows, cols, nil)
	dg.MulElem(grad, f.x)
	for i := len(f.Gate) - 1; i >= 0; i-- {
		dg = f.Gate[i].Backward(dg)
	}

	dx := mat.NewDense(rows, cols, nil)
	dx.MulElem(grad, f.g)
	dx.Add(dx, dg)
	return dx
}

func (f *FeatureGate) Params() []*Param {
	var ps []*Param
	for _, l := range f.Gate {
		ps = append(ps, l.Params()...)
	}
	return ps
}

func (f *FeatureGate) Penalty() float64 {
	var p float64
	for _, l := range f.Gate {
		p += l.Penalty()
	}
	return p
}

var (
	_ Layer = (*Residual)(nil)
	_ Layer = (*FeatureGate)(nil)
)
