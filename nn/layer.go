package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param 是一个可训练参数及其梯度。
//
//   - W 与 Grad 同形，Backward 负责填充 Grad，优化器负责更新 W
//   - NoDecay 标记偏置与归一化层的 γ/β，AdamW 的解耦衰减会跳过它们
type Param struct {
	Name    string
	W       *mat.Dense
	Grad    *mat.Dense
	NoDecay bool
}

func newParam(name string, w *mat.Dense, noDecay bool) *Param {
	r, c := w.Dims()
	return &Param{Name: name, W: w, Grad: mat.NewDense(r, c, nil), NoDecay: noDecay}
}

// zeroGrad 清空梯度（每个小批量开始时调用）。
func (p *Param) zeroGrad() {
	p.Grad.Zero()
}

// Layer 是网络层接口。
//
// 契约：
//   - Forward 在 training=true 时缓存反向所需的中间量
//   - Backward 输入 dL/dY，返回 dL/dX，并把参数梯度累积到 Params 的 Grad
//   - Backward 只能紧跟在 training=true 的 Forward 之后调用
type Layer interface {
	// Kind 返回层类型标识（序列化使用）
	Kind() string

	// OutputDim 返回该层输出宽度（给定输入宽度时的拓扑校验使用）
	OutputDim(inDim int) int

	// Forward 前向计算
	Forward(x *mat.Dense, training bool) *mat.Dense

	// Backward 反向传播，返回对输入的梯度
	Backward(grad *mat.Dense) *mat.Dense

	// Params 返回可训练参数（无参数层返回 nil）
	Params() []*Param

	// Penalty 返回该层的正则化罚项（计入报告损失）
	Penalty() float64
}

// Dense 全连接层：y = act(x·W + b)。
//
// 工程特征：
//   - 可选 L1/L2 核正则化，梯度在 Backward 中并入 dW（Keras 语义）
//   - act 为空串表示线性输出（网络末层由外部做 softmax）
type Dense struct {
	InDim, Units int
	Act          string
	Init         string
	L1, L2       float64

	W *Param // InDim×OutDim
	B *Param // 1×OutDim

	act actFunc
	x   *mat.Dense // 输入缓存
	z   *mat.Dense // 线性输出缓存
}

// DenseOption 配置 Dense 层
type DenseOption func(*Dense)

// WithL2 设置 L2 核正则化系数
func WithL2(l2 float64) DenseOption {
	return func(d *Dense) { d.L2 = l2 }
}

// WithL1L2 设置 L1+L2 核正则化系数
func WithL1L2(l1, l2 float64) DenseOption {
	return func(d *Dense) { d.L1, d.L2 = l1, l2 }
}

// WithInit 设置权重初始化方案（默认 glorot_uniform）
func WithInit(name string) DenseOption {
	return func(d *Dense) { d.Init = name }
}

// NewDense 创建全连接层。act 可为空（线性），未知激活或初始化方案返回错误。
func NewDense(rng *rand.Rand, in, out int, act string, opts ...DenseOption) (*Dense, error) {
	d := &Dense{InDim: in, Units: out, Act: act, Init: InitGlorotUniform}
	for _, opt := range opts {
		opt(d)
	}
	a, err := lookupActivation(act)
	if err != nil {
		return nil, err
	}
	d.act = a
	w, err := initWeights(d.Init, rng, in, out)
	if err != nil {
		return nil, err
	}
	d.W = newParam("kernel", w, false)
	d.B = newParam("bias", mat.NewDense(1, out, nil), true)
	return d, nil
}

func (d *Dense) Kind() string { return "dense" }

func (d *Dense) OutputDim(int) int { return d.Units }

func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }

func (d *Dense) Forward(x *mat.Dense, training bool) *mat.Dense {
	rows, _ := x.Dims()
	z := mat.NewDense(rows, d.Units, nil)
	z.Mul(x, d.W.W)
	for i := 0; i < rows; i++ {
		for j := 0; j < d.Units; j++ {
			z.Set(i, j, z.At(i, j)+d.B.W.At(0, j))
		}
	}
	if training {
		d.x = x
		d.z = z
	}
	y := mat.NewDense(rows, d.Units, nil)
	applyActivation(d.act, z, y)
	return y
}

func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	dZ := activationGrad(d.act, d.z, grad)

	// dW = xᵀ·dZ + 正则化梯度
	d.W.Grad.Mul(d.x.T(), dZ)
	if d.L1 > 0 || d.L2 > 0 {
		r, c := d.W.W.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				w := d.W.W.At(i, j)
				g := d.W.Grad.At(i, j)
				if d.L2 > 0 {
					g += 2 * d.L2 * w
				}
				if d.L1 > 0 {
					g += d.L1 * sign(w)
				}
				d.W.Grad.Set(i, j, g)
			}
		}
	}

	// dB = 按列求和
	rows, _ := dZ.Dims()
	for j := 0; j < d.Units; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += dZ.At(i, j)
		}
		d.B.Grad.Set(0, j, sum)
	}

	dX := mat.NewDense(rows, d.InDim, nil)
	dX.Mul(dZ, d.W.W.T())
	return dX
}

func (d *Dense) Penalty() float64 {
	if d.L1 == 0 && d.L2 == 0 {
		return 0
	}
	p := 0.0
	r, c := d.W.W.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			w := d.W.W.At(i, j)
			p += d.L2*w*w + d.L1*abs(w)
		}
	}
	return p
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Dropout 反向缩放随机失活：训练时以 rate 概率置零并按 1/(1-rate) 放大，
// 推理时恒等。
type Dropout struct {
	Rate float64

	rng  *rand.Rand
	mask *mat.Dense
}

// NewDropout 创建 Dropout 层。
func NewDropout(rng *rand.Rand, rate float64) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

func (d *Dropout) Kind() string            { return "dropout" }
func (d *Dropout) OutputDim(inDim int) int { return inDim }
func (d *Dropout) Params() []*Param        { return nil }
func (d *Dropout) Penalty() float64        { return 0 }

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.Rate <= 0 {
		return x
	}
	r, c := x.Dims()
	d.mask = mat.NewDense(r, c, nil)
	out := mat.NewDense(r, c, nil)
	keep := 1 - d.Rate
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d.rng.Float64() < keep {
				d.mask.Set(i, j, 1/keep)
				out.Set(i, j, x.At(i, j)/keep)
			}
		}
	}
	return out
}

func (d *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	r, c := grad.Dims()
	out := mat.NewDense(r, c, nil)
	out.MulElem(grad, d.mask)
	return out
}

// AlphaDropout 是 SELU 配套的失活层：把失活位置设为 α′ 并做仿射校正，
// 保持自归一化网络的零均值单位方差。
type AlphaDropout struct {
	Rate float64

	rng  *rand.Rand
	mask *mat.Dense // 保留位置为 1
	a    float64    // 仿射校正系数
}

// NewAlphaDropout 创建 AlphaDropout 层。
func NewAlphaDropout(rng *rand.Rand, rate float64) *AlphaDropout {
	return &AlphaDropout{Rate: rate, rng: rng}
}

func (d *AlphaDropout) Kind() string            { return "alpha_dropout" }
func (d *AlphaDropout) OutputDim(inDim int) int { return inDim }
func (d *AlphaDropout) Params() []*Param        { return nil }
func (d *AlphaDropout) Penalty() float64        { return 0 }

func (d *AlphaDropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.Rate <= 0 {
		return x
	}
	alphaP := -seluLambda * seluAlpha
	keep := 1 - d.Rate
	d.a = 1 / math.Sqrt(keep*(1+d.Rate*alphaP*alphaP))
	b := -d.a * alphaP * d.Rate

	r, c := x.Dims()
	d.mask = mat.NewDense(r, c, nil)
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if d.rng.Float64() < keep {
				d.mask.Set(i, j, 1)
				out.Set(i, j, d.a*x.At(i, j)+b)
			} else {
				out.Set(i, j, d.a*alphaP+b)
			}
		}
	}
	return out
}

func (d *AlphaDropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	r, c := grad.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, grad.At(i, j)*d.a*d.mask.At(i, j))
		}
	}
	return out
}

// PReLU 带可学习负半轴斜率的 ReLU：y = max(x,0) + α·min(x,0)，α 逐通道。
// α 初始为零，初始行为等同 ReLU。
type PReLU struct {
	Dim int

	Alpha *Param // 1×Dim
	x     *mat.Dense
}

// NewPReLU 创建 PReLU 层。
func NewPReLU(dim int) *PReLU {
	return &PReLU{Dim: dim, Alpha: newParam("alpha", mat.NewDense(1, dim, nil), true)}
}

func (p *PReLU) Kind() string            { return "prelu" }
func (p *PReLU) OutputDim(inDim int) int { return inDim }
func (p *PReLU) Params() []*Param        { return []*Param{p.Alpha} }
func (p *PReLU) Penalty() float64        { return 0 }

func (p *PReLU) Forward(x *mat.Dense, training bool) *mat.Dense {
	if training {
		p.x = x
	}
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := x.At(i, j)
			if v > 0 {
				out.Set(i, j, v)
			} else {
				out.Set(i, j, p.Alpha.W.At(0, j)*v)
			}
		}
	}
	return out
}

func (p *PReLU) Backward(grad *mat.Dense) *mat.Dense {
	r, c := grad.Dims()
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		dAlpha := 0.0
		for i := 0; i < r; i++ {
			v := p.x.At(i, j)
			g := grad.At(i, j)
			if v > 0 {
				out.Set(i, j, g)
			} else {
				out.Set(i, j, g*p.Alpha.W.At(0, j))
				dAlpha += g * v
			}
		}
		p.Alpha.Grad.Set(0, j, dAlpha)
	}
	return out
}

