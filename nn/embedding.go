package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// EmbeddingBank 类别特征嵌入层
//
// 每个类别特征持有一张独立的查表矩阵（词表行数 × 嵌入维度），
// 前向按编码值逐特征查表后横向拼接；反向只把梯度累加到本批
// 实际命中的表行上。作为网络首层使用，向上游不再回传梯度。
type EmbeddingBank struct {
	NumFeatures int
	VocabSize   int
	EmbDim      int

	Tables []*Param

	idx [][]int
}

// NewEmbeddingBank 构造嵌入层，各表按均匀分布 U(-0.05, 0.05) 初始化
func NewEmbeddingBank(rng *rand.Rand, numFeatures, vocabSize, embDim int) (*EmbeddingBank, error) {
	if numFeatures <= 0 || vocabSize <= 0 || embDim <= 0 {
		return nil, fmt.Errorf("nn: embedding bank dims must be positive, got %d/%d/%d", numFeatures, vocabSize, embDim)
	}
	e := &EmbeddingBank{
		NumFeatures: numFeatures,
		VocabSize:   vocabSize,
		EmbDim:      embDim,
		Tables:      make([]*Param, numFeatures),
	}
	for f := 0; f < numFeatures; f++ {
		w := mat.NewDense(vocabSize, embDim, nil)
		fillUniform(rng, w, -0.05, 0.05)
		e.Tables[f] = newParam(fmt.Sprintf("embedding_%d", f), w, false)
	}
	return e, nil
}

func (e *EmbeddingBank) Kind() string      { return "embedding_bank" }
func (e *EmbeddingBank) OutputDim(int) int { return e.NumFeatures * e.EmbDim }

// Forward 输入为编码后的类别值矩阵（每列一个特征），输出逐特征嵌入的拼接。
// 编码值越界时收敛到最近的合法表行。
func (e *EmbeddingBank) Forward(x *mat.Dense, training bool) *mat.Dense {
	rows, _ := x.Dims()
	y := mat.NewDense(rows, e.NumFeatures*e.EmbDim, nil)
	idx := make([][]int, rows)
	for i := 0; i < rows; i++ {
		idx[i] = make([]int, e.NumFeatures)
		for f := 0; f < e.NumFeatures; f++ {
			k := int(x.At(i, f))
			if k < 0 {
				k = 0
			}
			if k >= e.VocabSize {
				k = e.VocabSize - 1
			}
			idx[i][f] = k
			for d := 0; d < e.EmbDim; d++ {
				y.Set(i, f*e.EmbDim+d, e.Tables[f].W.At(k, d))
			}
		}
	}
	if training {
		e.idx = idx
	}
	return y
}

// Backward 把上游梯度累加到命中的表行，首层无需继续回传
func (e *EmbeddingBank) Backward(grad *mat.Dense) *mat.Dense {
	rows, _ := grad.Dims()
	for i := 0; i < rows; i++ {
		for f := 0; f < e.NumFeatures; f++ {
			k := e.idx[i][f]
			for d := 0; d < e.EmbDim; d++ {
				g := e.Tables[f].Grad.At(k, d)
				e.Tables[f].Grad.Set(k, d, g+grad.At(i, f*e.EmbDim+d))
			}
		}
	}
	return nil
}

func (e *EmbeddingBank) Params() []*Param { return e.Tables }
func (e *EmbeddingBank) Penalty() float64 { return 0 }

var _ Layer = (*EmbeddingBank)(nil)
