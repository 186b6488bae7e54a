// Package dataset 负责数据加载、编码、分层切分与特征标准化。
//
// 核心思想：
//   - 加载时应用固定编码表，未知类别编码为 NaN，切分前显式失败
//   - 两阶段分层切分（先测试集，再从剩余中切验证集），同种子可完全复现
//   - 标准化器只在训练分区上拟合，验证/测试分区仅做变换，保证无泄漏
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/feature"
)

// Dataset 是加载并编码后的完整数据集。
type Dataset struct {
	Records []core.Record // 原始记录（加载后不可变）
	Raw     *mat.Dense    // 编码后整数级别矩阵 (n × NumFeatures)，未知类别为 NaN
	Labels  []int         // 整数标签（0..NumClasses-1），未知标签为 -1
}

// Len 返回记录数。
func (ds *Dataset) Len() int {
	return len(ds.Records)
}

// Validate 检查编码完整性：存在 NaN 特征或未知标签时返回致命的
// UNMAPPED_CATEGORY 数据契约错误，绝不允许在损坏的行上继续训练。
func (ds *Dataset) Validate() error {
	var bad []int
	for i := 0; i < len(ds.Records); i++ {
		corrupt := ds.Labels[i] < 0
		if !corrupt {
			for j := 0; j < core.NumFeatures; j++ {
				if math.IsNaN(ds.Raw.At(i, j)) {
					corrupt = true
					break
				}
			}
		}
		if corrupt {
			bad = append(bad, ds.Records[i].Index)
			if len(bad) >= 10 {
				break
			}
		}
	}
	if len(bad) > 0 {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeUnmappedCategory,
			fmt.Sprintf("dataset: unmapped category or label at source rows %v", bad))
	}
	return nil
}

// ClassCounts 返回每个类别的记录数（下标即标签）。
func (ds *Dataset) ClassCounts() []int {
	counts := make([]int, core.NumClasses)
	for _, l := range ds.Labels {
		if l >= 0 && l < core.NumClasses {
			counts[l]++
		}
	}
	return counts
}

// Partition 是一个命名数据子集（train/validation/test）。
// 行顺序即矩阵、标签与记录列表共享的稳定行标识，
// 外部嵌入矩阵按同一顺序与分区对齐。
type Partition struct {
	Name    string
	Records []core.Record
	Raw     *mat.Dense // 原始整数级别矩阵
	Scaled  *mat.Dense // 标准化后的矩阵（ScaleFeatures 之后可用）
	Labels  []int
	Indices []int // 在源 Dataset 中的行下标（升序）
}

// Len 返回分区记录数。
func (p *Partition) Len() int {
	return len(p.Records)
}

// ClassCounts 返回分区内每个类别的记录数。
func (p *Partition) ClassCounts() []int {
	counts := make([]int, core.NumClasses)
	for _, l := range p.Labels {
		if l >= 0 && l < core.NumClasses {
			counts[l]++
		}
	}
	return counts
}

// Batch 组装该分区的模型输入。aux 是可选的外部嵌入矩阵（可为 nil），
// 若提供则必须与分区行数一致，否则返回 ROW_MISMATCH。
func (p *Partition) Batch(aux *mat.Dense) (*core.Batch, error) {
	if aux != nil {
		rows, _ := aux.Dims()
		if rows != p.Len() {
			return nil, core.NewDomainError(core.ModuleDataset, core.ErrorCodeRowMismatch,
				fmt.Sprintf("dataset: partition %q has %d rows, auxiliary embedding matrix has %d", p.Name, p.Len(), rows))
		}
	}
	return &core.Batch{Tabular: p.Scaled, Raw: p.Raw, Aux: aux}, nil
}

// Splits 聚合三个分区与在训练分区上拟合的标准化器。
type Splits struct {
	Train      *Partition
	Validation *Partition
	Test       *Partition
	Scaler     *feature.StandardScaler
}

// Partitions 按 train/validation/test 顺序返回分区。
func (s *Splits) Partitions() []*Partition {
	return []*Partition{s.Train, s.Validation, s.Test}
}

// ScaleFeatures 在训练分区上拟合标准化器，并变换全部三个分区。
// 验证/测试分区绝不参与拟合；重复调用会重新拟合（仍只用训练分区）。
func (s *Splits) ScaleFeatures() error {
	scaler := feature.NewStandardScaler()
	if err := scaler.Fit(s.Train.Raw); err != nil {
		return fmt.Errorf("fit scaler on train partition: %w", err)
	}
	for _, p := range s.Partitions() {
		scaled, err := scaler.Transform(p.Raw)
		if err != nil {
			return fmt.Errorf("scale partition %q: %w", p.Name, err)
		}
		p.Scaled = scaled
	}
	s.Scaler = scaler
	return nil
}
