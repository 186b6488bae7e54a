package core

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// InputKind 是分类器声明的输入类型标签。
//
// 设计原则：
//   - 每个集成成员在构造时声明自己的输入契约，之后不可变更
//   - 聚合器按此标签路由输入，而不是按模型名字符串匹配
//   - 路由与命名解耦：改名不会引起输入错配
type InputKind int

const (
	// KindTabular 接受标准化后的特征矩阵（12 个成员中的 10 个）
	KindTabular InputKind = iota

	// KindEmbedding 接受原始整数编码特征，逐列送入嵌入层
	KindEmbedding

	// KindFusion 同时接受标准化特征矩阵与外部嵌入矩阵
	KindFusion
)

func (k InputKind) String() string {
	switch k {
	case KindTabular:
		return "tabular"
	case KindEmbedding:
		return "embedding"
	case KindFusion:
		return "fusion"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Batch 是一次预测/训练调用的输入集合。
//
// 三种表示按行对齐，聚合器按成员的 InputKind 选取子集：
//   - Tabular：标准化特征矩阵 (n × NumFeatures)
//   - Raw：原始整数编码矩阵 (n × NumFeatures)，嵌入模型使用
//   - Aux：外部嵌入矩阵 (n × 嵌入宽度)，融合模型使用，可缺失
//
// 缺失的可选输入在训练时导致对应成员被跳过（记警告），
// 在预测时对显式路由到该成员的调用返回 MISSING_INPUT 错误。
type Batch struct {
	Tabular *mat.Dense
	Raw     *mat.Dense
	Aux     *mat.Dense
}

// Rows 返回批次行数（以标准化矩阵为准，缺失时退回 Raw）。
func (b *Batch) Rows() int {
	if b == nil {
		return 0
	}
	if b.Tabular != nil {
		r, _ := b.Tabular.Dims()
		return r
	}
	if b.Raw != nil {
		r, _ := b.Raw.Dims()
		return r
	}
	if b.Aux != nil {
		r, _ := b.Aux.Dims()
		return r
	}
	return 0
}

// Supports 报告批次是否携带 kind 所需的全部输入。
func (b *Batch) Supports(kind InputKind) bool {
	if b == nil {
		return false
	}
	switch kind {
	case KindTabular:
		return b.Tabular != nil
	case KindEmbedding:
		return b.Raw != nil
	case KindFusion:
		return b.Tabular != nil && b.Aux != nil
	default:
		return false
	}
}

// CheckKind 校验批次满足 kind 的输入契约，不满足时返回 MISSING_INPUT。
func (b *Batch) CheckKind(kind InputKind) error {
	if b.Supports(kind) {
		return nil
	}
	return NewDomainError(ModuleEnsemble, ErrorCodeMissingInput,
		fmt.Sprintf("batch does not carry required inputs for kind %q", kind))
}

// Subset 按行下标抽取子批次（小批量训练使用），缺失的表示保持缺失。
func (b *Batch) Subset(rows []int) *Batch {
	sub := &Batch{}
	sub.Tabular = subsetRows(b.Tabular, rows)
	sub.Raw = subsetRows(b.Raw, rows)
	sub.Aux = subsetRows(b.Aux, rows)
	return sub
}

func subsetRows(m *mat.Dense, rows []int) *mat.Dense {
	if m == nil {
		return nil
	}
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

// Classifier 是训练完成（冻结）后的分类器领域接口。
//
// 设计原则：
//   - Predict 返回 (n × NumClasses) 概率矩阵，每行和为 1
//   - Kind 声明输入契约，构造后不可变
//   - 实现不持有分区数据，输入由调用方路由
type Classifier interface {
	// Name 返回模型名（工件目录与日志使用）
	Name() string

	// Kind 返回构造时声明的输入类型标签
	Kind() InputKind

	// Predict 对批次做前向计算，返回类别概率矩阵
	Predict(in *Batch) (*mat.Dense, error)
}

// Trainable 是可训练分类器的领域接口，由 nn 包的网络类型实现。
//
// 训练器通过此接口驱动小批量梯度训练、早停与检查点，
// 搜索编排器复用同一接口，与固定花名册共享训练路径。
type Trainable interface {
	Classifier

	// TrainBatch 对一个小批量执行前向、反向与参数更新，返回批损失
	TrainBatch(in *Batch, labels []int) (float64, error)

	// Loss 计算给定数据上的平均损失（推理模式，不更新参数）
	Loss(in *Batch, labels []int) (float64, error)

	// LearningRate 返回当前学习率
	LearningRate() float64

	// SetLearningRate 调整学习率（平台期衰减使用）
	SetLearningRate(lr float64)

	// StateBytes 序列化拓扑与全部权重（最优权重快照、落盘检查点共用）
	StateBytes() ([]byte, error)

	// RestoreState 从 StateBytes 的输出恢复权重
	RestoreState(data []byte) error
}
