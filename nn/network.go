package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// Network 前馈分类网络，统一承载三类输入契约
//
// 核心思想：
//   - 单干路模型（表格输入、嵌入输入）按层串联；融合模型持有
//     两条分支，汇合后共享头部
//   - 末层为线性全连接，softmax 在网络层面施加，交叉熵梯度以
//     合并形式回传，层实现无需感知 softmax
//   - 训练损失包含各层的正则惩罚项，与验证监控口径一致
//
// 工程特征：
//   - 实现 core.Trainable，训练器与聚合器只依赖接口
//   - 参数列表顺序稳定，更新器按下标维护状态
//   - RestoreState 原地覆写权重，参数指针不变，更新器状态不失配
type Network struct {
	name string
	kind core.InputKind

	stack []Layer

	tabBranch []Layer
	auxBranch []Layer
	head      []Layer

	opt Optimizer

	tabCols int
}

// NewNetwork 构造单干路网络（表格或嵌入输入）
func NewNetwork(name string, kind core.InputKind, opt Optimizer, stack ...Layer) (*Network, error) {
	if name == "" {
		return nil, fmt.Errorf("nn: network name must not be empty")
	}
	if opt == nil {
		return nil, fmt.Errorf("nn: network %q needs an optimizer", name)
	}
	if kind != core.KindTabular && kind != core.KindEmbedding {
		return nil, fmt.Errorf("nn: kind %q needs NewFusionNetwork", kind)
	}
	if len(stack) == 0 {
		return nil, fmt.Errorf("nn: network %q has no layers", name)
	}
	return &Network{name: name, kind: kind, stack: stack, opt: opt}, nil
}

// NewFusionNetwork 构造双分支融合网络，tab 分支吃标准化特征，
// aux 分支吃外部嵌入，二者输出横向拼接后进入 head
func NewFusionNetwork(name string, opt Optimizer, tab, aux, head []Layer) (*Network, error) {
	if name == "" {
		return nil, fmt.Errorf("nn: network name must not be empty")
	}
	if opt == nil {
		return nil, fmt.Errorf("nn: network %q needs an optimizer", name)
	}
	if len(tab) == 0 || len(aux) == 0 || len(head) == 0 {
		return nil, fmt.Errorf("nn: fusion network %q needs both branches and a head", name)
	}
	return &Network{name: name, kind: core.KindFusion, opt: opt, tabBranch: tab, auxBranch: aux, head: head}, nil
}

func (n *Network) Name() string         { return n.name }
func (n *Network) Kind() core.InputKind { return n.kind }

func (n *Network) LearningRate() float64      { return n.opt.LearningRate() }
func (n *Network) SetLearningRate(lr float64) { n.opt.SetLearningRate(lr) }

// Params 返回全部可训练参数，顺序在网络生命周期内保持稳定
func (n *Network) Params() []*Param {
	var ps []*Param
	for _, l := range n.layers() {
		ps = append(ps, l.Params()...)
	}
	return ps
}

func (n *Network) layers() []Layer {
	if n.kind == core.KindFusion {
		all := make([]Layer, 0, len(n.tabBranch)+len(n.auxBranch)+len(n.head))
		all = append(all, n.tabBranch...)
		all = append(all, n.auxBranch...)
		return append(all, n.head...)
	}
	return n.stack
}

func (n *Network) penalty() float64 {
	var p float64
	for _, l := range n.layers() {
		p += l.Penalty()
	}
	return p
}

// Predict 前向计算类别概率，输入缺失时返回 MISSING_INPUT
func (n *Network) Predict(in *core.Batch) (*mat.Dense, error) {
	if err := in.CheckKind(n.kind); err != nil {
		return nil, err
	}
	return SoftmaxRows(n.forward(in, false)), nil
}

// TrainBatch 对小批量执行一次完整的前向、反向与参数更新，
// 返回含正则项的批损失
func (n *Network) TrainBatch(in *core.Batch, labels []int) (float64, error) {
	if err := in.CheckKind(n.kind); err != nil {
		return 0, err
	}
	if in.Rows() != len(labels) {
		return 0, fmt.Errorf("nn: batch has %d rows for %d labels", in.Rows(), len(labels))
	}
	for _, p := range n.Params() {
		p.zeroGrad()
	}
	logits := n.forward(in, true)
	probs := SoftmaxRows(logits)
	loss, err := SparseCrossEntropy(probs, labels)
	if err != nil {
		return 0, err
	}
	loss += n.penalty()

	n.backward(crossEntropyGrad(probs, labels))
	n.opt.Step(n.Params())
	return loss, nil
}

// Loss 推理模式下计算平均损失（含正则项），不触碰参数
func (n *Network) Loss(in *core.Batch, labels []int) (float64, error) {
	if err := in.CheckKind(n.kind); err != nil {
		return 0, err
	}
	if in.Rows() != len(labels) {
		return 0, fmt.Errorf("nn: batch has %d rows for %d labels", in.Rows(), len(labels))
	}
	probs := SoftmaxRows(n.forward(in, false))
	loss, err := SparseCrossEntropy(probs, labels)
	if err != nil {
		return 0, err
	}
	return loss + n.penalty(), nil
}

func (n *Network) forward(in *core.Batch, training bool) *mat.Dense {
	switch n.kind {
	case core.KindEmbedding:
		return runForward(n.stack, in.Raw, training)
	case core.KindFusion:
		ht := runForward(n.tabBranch, in.Tabular, training)
		ha := runForward(n.auxBranch, in.Aux, training)
		_, n.tabCols = ht.Dims()
		return runForward(n.head, hstack(ht, ha), training)
	default:
		return runForward(n.stack, in.Tabular, training)
	}
}

func (n *Network) backward(grad *mat.Dense) {
	if n.kind != core.KindFusion {
		runBackward(n.stack, grad)
		return
	}
	dh := runBackward(n.head, grad)
	dt, da := splitCols(dh, n.tabCols)
	runBackward(n.tabBranch, dt)
	runBackward(n.auxBranch, da)
}

func runForward(layers []Layer, x *mat.Dense, training bool) *mat.Dense {
	for _, l := range layers {
		x = l.Forward(x, training)
	}
	return x
}

func runBackward(layers []Layer, grad *mat.Dense) *mat.Dense {
	for i := len(layers) - 1; i >= 0; i-- {
		grad = layers[i].Backward(grad)
		if grad == nil {
			return nil
		}
	}
	return grad
}

// hstack 横向拼接两个行数一致的矩阵
func hstack(a, b *mat.Dense) *mat.Dense {
	ar, ac := a.Dims()
	_, bc := b.Dims()
	out := mat.NewDense(ar, ac+bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			out.Set(i, j, a.At(i, j))
		}
		for j := 0; j < bc; j++ {
			out.Set(i, ac+j, b.At(i, j))
		}
	}
	return out
}

// splitCols 按列位置把矩阵切成左右两块
func splitCols(m *mat.Dense, at int) (*mat.Dense, *mat.Dense) {
	rows, cols := m.Dims()
	left := mat.NewDense(rows, at, nil)
	right := mat.NewDense(rows, cols-at, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < at; j++ {
			left.Set(i, j, m.At(i, j))
		}
		for j := at; j < cols; j++ {
			right.Set(i, j-at, m.At(i, j))
		}
	}
	return left, right
}

var _ core.Trainable = (*Network)(nil)
