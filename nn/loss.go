package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// lossEps 概率裁剪下限，避免 log(0)
const lossEps = 1e-7

// SparseCrossEntropy 稀疏多分类交叉熵，取批内均值。
// labels 为类别下标，长度必须与概率矩阵的行数一致。
func SparseCrossEntropy(probs *mat.Dense, labels []int) (float64, error) {
	rows, cols := probs.Dims()
	if rows != len(labels) {
		return 0, fmt.Errorf("nn: got %d probability rows for %d labels", rows, len(labels))
	}
	var sum float64
	for i, y := range labels {
		if y < 0 || y >= cols {
			return 0, fmt.Errorf("nn: label %d out of range [0,%d)", y, cols)
		}
		p := probs.At(i, y)
		if p < lossEps {
			p = lossEps
		}
		if p > 1-lossEps {
			p = 1 - lossEps
		}
		sum += -math.Log(p)
	}
	return sum / float64(rows), nil
}

// crossEntropyGrad 返回 softmax 与交叉熵合并后的输出梯度 (p - onehot)/n。
// 合并形式在数值上更稳定，网络层因此无需单独实现 softmax 的反向。
func crossEntropyGrad(probs *mat.Dense, labels []int) *mat.Dense {
	rows, cols := probs.Dims()
	n := float64(rows)
	grad := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			g := probs.At(i, j)
			if j == labels[i] {
				g -= 1
			}
			grad.Set(i, j, g/n)
		}
	}
	return grad
}
