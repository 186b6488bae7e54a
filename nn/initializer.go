package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// 权重初始化方案名
const (
	InitGlorotUniform = "glorot_uniform"
	InitHeNormal      = "he_normal"
	InitLecunNormal   = "lecun_normal"
)

// InitializerNames 返回全部可用初始化方案名。
func InitializerNames() []string {
	return []string{InitGlorotUniform, InitHeNormal, InitLecunNormal}
}

// initWeights 按命名方案初始化 fanIn×fanOut 权重矩阵。
//
//   - glorot_uniform：U(-l, l)，l = √(6/(fanIn+fanOut))
//   - he_normal：截断正态，σ = √(2/fanIn)
//   - lecun_normal：截断正态，σ = √(1/fanIn)
func initWeights(name string, rng *rand.Rand, fanIn, fanOut int) (*mat.Dense, error) {
	if name == "" {
		name = InitGlorotUniform
	}
	w := mat.NewDense(fanIn, fanOut, nil)
	switch name {
	case InitGlorotUniform:
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		fillUniform(rng, w, -limit, limit)
	case InitHeNormal:
		fillTruncNormal(rng, w, math.Sqrt(2.0/float64(fanIn)))
	case InitLecunNormal:
		fillTruncNormal(rng, w, math.Sqrt(1.0/float64(fanIn)))
	default:
		return nil, fmt.Errorf("nn: unknown weight initializer %q", name)
	}
	return w, nil
}

func fillUniform(rng *rand.Rand, m *mat.Dense, lo, hi float64) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, lo+rng.Float64()*(hi-lo))
		}
	}
}

// fillTruncNormal 采样 N(0, σ²) 并截断在 ±2σ 内（超界重采样）。
func fillTruncNormal(rng *rand.Rand, m *mat.Dense, std float64) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := rng.NormFloat64() * std
			for math.Abs(v) > 2*std {
				v = rng.NormFloat64() * std
			}
			m.Set(i, j, v)
		}
	}
}
