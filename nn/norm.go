package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BatchNorm 批归一化层
//
// 训练态使用当前 mini-batch 的均值与方差做归一化，并以指数滑动平均
// 维护推理态统计量；推理态改用滑动统计量，保证单样本预测可复现。
// 缩放参数 gamma 与偏移参数 beta 可训练，且不参与权重衰减。
type BatchNorm struct {
	Dim      int
	Momentum float64
	Eps      float64

	Gamma *Param
	Beta  *Param

	// 推理态统计量，随训练步更新，不参与反向传播
	RunningMean []float64
	RunningVar  []float64

	xhat   *mat.Dense
	invStd []float64
}

// NewBatchNorm 构造批归一化层，滑动系数与数值稳定项取常用默认值
func NewBatchNorm(dim int) *BatchNorm {
	b := &BatchNorm{
		Dim:         dim,
		Momentum:    0.99,
		Eps:         1e-3,
		Gamma:       newParam("gamma", mat.NewDense(1, dim, nil), true),
		Beta:        newParam("beta", mat.NewDense(1, dim, nil), true),
		RunningMean: make([]float64, dim),
		RunningVar:  make([]float64, dim),
	}
	for j := 0; j < dim; j++ {
		b.Gamma.W.Set(0, j, 1)
		b.RunningVar[j] = 1
	}
	return b
}

func (b *BatchNorm) Kind() string            { return "batch_norm" }
func (b *BatchNorm) OutputDim(inDim int) int { return inDim }

// Forward 训练态按批统计归一化并更新滑动统计量，推理态使用滑动统计量
func (b *BatchNorm) Forward(x *mat.Dense, training bool) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)

	if !training {
		for j := 0; j < cols; j++ {
			inv := 1 / math.Sqrt(b.RunningVar[j]+b.Eps)
			g := b.Gamma.W.At(0, j)
			bt := b.Beta.W.At(0, j)
			for i := 0; i < rows; i++ {
				y.Set(i, j, g*(x.At(i, j)-b.RunningMean[j])*inv+bt)
			}
		}
		return y
	}

	n := float64(rows)
	b.xhat = mat.NewDense(rows, cols, nil)
	b.invStd = make([]float64, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += x.At(i, j)
		}
		mean := sum / n
		var sq float64
		for i := 0; i < rows; i++ {
			d := x.At(i, j) - mean
			sq += d * d
		}
		variance := sq / n

		b.RunningMean[j] = b.Momentum*b.RunningMean[j] + (1-b.Momentum)*mean
		b.RunningVar[j] = b.Momentum*b.RunningVar[j] + (1-b.Momentum)*variance

		inv := 1 / math.Sqrt(variance+b.Eps)
		b.invStd[j] = inv
		g := b.Gamma.W.At(0, j)
		bt := b.Beta.W.At(0, j)
		for i := 0; i < rows; i++ {
			xh := (x.At(i, j) - mean) * inv
			b.xhat.Set(i, j, xh)
			y.Set(i, j, g*xh+bt)
		}
	}
	return y
}

// Backward 对批统计量做完整反向传播，同时累计 gamma 与 beta 的梯度
func (b *BatchNorm) Backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	n := float64(rows)
	dx := mat.NewDense(rows, cols, nil)

	for j := 0; j < cols; j++ {
		g := b.Gamma.W.At(0, j)
		var sumDy, sumDyXhat float64
		for i := 0; i < rows; i++ {
			dy := grad.At(i, j)
			sumDy += dy
			sumDyXhat += dy * b.xhat.At(i, j)
		}
		b.Gamma.Grad.Set(0, j, b.Gamma.Grad.At(0, j)+sumDyXhat)
		b.Beta.Grad.Set(0, j, b.Beta.Grad.At(0, j)+sumDy)

		// dX = gamma*invStd/n * (n*dY - Σ dY - xhat * Σ dY*xhat)
		scale := g * b.invStd[j] / n
		for i := 0; i < rows; i++ {
			dy := grad.At(i, j)
			dx.Set(i, j, scale*(n*dy-sumDy-b.xhat.At(i, j)*sumDyXhat))
		}
	}
	return dx
}

func (b *BatchNorm) Params() []*Param { return []*Param{b.Gamma, b.Beta} }
func (b *BatchNorm) Penalty() float64 { return 0 }

// LayerNorm 层归一化
//
// 对每个样本沿特征维做归一化，统计量只依赖样本自身，
// 训练态与推理态行为一致，不维护滑动统计量。
type LayerNorm struct {
	Dim int
	Eps float64

	Gamma *Param
	Beta  *Param

	xhat   *mat.Dense
	invStd []float64
}

// NewLayerNorm 构造层归一化层
func NewLayerNorm(dim int) *LayerNorm {
	l := &LayerNorm{
		Dim:   dim,
		Eps:   1e-3,
		Gamma: newParam("gamma", mat.NewDense(1, dim, nil), true),
		Beta:  newParam("beta", mat.NewDense(1, dim, nil), true),
	}
	for j := 0; j < dim; j++ {
		l.Gamma.W.Set(0, j, 1)
	}
	return l
}

func (l *LayerNorm) Kind() string            { return "layer_norm" }
func (l *LayerNorm) OutputDim(inDim int) int { return inDim }

func (l *LayerNorm) Forward(x *mat.Dense, training bool) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	d := float64(cols)

	xhat := mat.NewDense(rows, cols, nil)
	invStd := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			sum += x.At(i, j)
		}
		mean := sum / d
		var sq float64
		for j := 0; j < cols; j++ {
			dv := x.At(i, j) - mean
			sq += dv * dv
		}
		inv := 1 / math.Sqrt(sq/d+l.Eps)
		invStd[i] = inv
		for j := 0; j < cols; j++ {
			xh := (x.At(i, j) - mean) * inv
			xhat.Set(i, j, xh)
			y.Set(i, j, l.Gamma.W.At(0, j)*xh+l.Beta.W.At(0, j))
		}
	}
	if training {
		l.xhat = xhat
		l.invStd = invStd
	}
	return y
}

func (l *LayerNorm) Backward(grad *mat.Dense) *mat.Dense {
	rows, cols := grad.Dims()
	d := float64(cols)
	dx := mat.NewDense(rows, cols, nil)

	for j := 0; j < cols; j++ {
		var dg, db float64
		for i := 0; i < rows; i++ {
			dg += grad.At(i, j) * l.xhat.At(i, j)
			db += grad.At(i, j)
		}
		l.Gamma.Grad.Set(0, j, l.Gamma.Grad.At(0, j)+dg)
		l.Beta.Grad.Set(0, j, l.Beta.Grad.At(0, j)+db)
	}

	for i := 0; i < rows; i++ {
		var sumDxh, sumDxhXhat float64
		for j := 0; j < cols; j++ {
			dxh := grad.At(i, j) * l.Gamma.W.At(0, j)
			sumDxh += dxh
			sumDxhXhat += dxh * l.xhat.At(i, j)
		}
		scale := l.invStd[i] / d
		for j := 0; j < cols; j++ {
			dxh := grad.At(i, j) * l.Gamma.W.At(0, j)
			dx.Set(i, j, scale*(d*dxh-sumDxh-l.xhat.At(i, j)*sumDxhXhat))
		}
	}
	return dx
}

func (l *LayerNorm) Params() []*Param { return []*Param{l.Gamma, l.Beta} }
func (l *LayerNorm) Penalty() float64 { return 0 }

var (
	_ Layer = (*BatchNorm)(nil)
	_ Layer = (*LayerNorm)(nil)
)
