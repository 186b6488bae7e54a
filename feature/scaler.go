package feature

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler 是按列的 Z-score 标准化器。
// 公式: z = (x - μ) / σ
//
// 设计原则：
//   - 只在训练分区上 Fit，验证/测试分区只 Transform，保证无泄漏
//   - Transform 幂等：对同一输入重复应用已拟合的变换，结果不变（不会重新拟合）
//   - σ 为总体标准差（除以 n）；零方差列的 σ 记为 1，变换后该列恒为 0
type StandardScaler struct {
	Mean  []float64 // 每列均值（训练分区统计）
	Scale []float64 // 每列标准差，零方差列为 1
}

// NewStandardScaler 创建未拟合的标准化器。
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fitted 报告是否已拟合。
func (s *StandardScaler) Fitted() bool {
	return len(s.Mean) > 0
}

// Fit 在训练矩阵上计算每列的均值与总体标准差。重复调用会重新拟合。
func (s *StandardScaler) Fit(train *mat.Dense) error {
	if train == nil {
		return fmt.Errorf("scaler: nil training matrix")
	}
	rows, cols := train.Dims()
	if rows == 0 {
		return fmt.Errorf("scaler: empty training matrix")
	}

	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, train)
		mean, variance := stat.MeanVariance(col, nil)
		// stat.MeanVariance 是无偏方差（除以 n-1），这里换算为总体方差
		variance *= float64(rows-1) / float64(rows)
		s.Mean[j] = mean
		if sd := math.Sqrt(variance); sd > 0 {
			s.Scale[j] = sd
		} else {
			s.Scale[j] = 1
		}
	}
	return nil
}

// Transform 应用已拟合的变换，返回新矩阵，不修改输入。
func (s *StandardScaler) Transform(m *mat.Dense) (*mat.Dense, error) {
	if !s.Fitted() {
		return nil, fmt.Errorf("scaler: transform before fit")
	}
	if m == nil {
		return nil, fmt.Errorf("scaler: nil matrix")
	}
	rows, cols := m.Dims()
	if cols != len(s.Mean) {
		return nil, fmt.Errorf("scaler: matrix has %d columns, fitted on %d", cols, len(s.Mean))
	}

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (m.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return out, nil
}

// FitTransform 在训练矩阵上拟合并立即变换。
func (s *StandardScaler) FitTransform(train *mat.Dense) (*mat.Dense, error) {
	if err := s.Fit(train); err != nil {
		return nil, err
	}
	return s.Transform(train)
}
