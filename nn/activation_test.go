package nn

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestActivations_KnownValues(t *testing.T) {
	tests := []struct {
		act  string
		in   float64
		want float64
	}{
		{"linear", -2.5, -2.5},
		{"relu", -1, 0},
		{"relu", 2, 2},
		{"leaky_relu", -1, -0.2},
		{"leaky_relu", 3, 3},
		{"elu", -1, math.Exp(-1) - 1},
		{"elu", 2, 2},
		{"selu", 1, 1.0507009873554805},
		{"selu", -1, 1.0507009873554805 * 1.6732632423543772 * (math.Exp(-1) - 1)},
		{"gelu", 0, 0},
		{"gelu", 1, 0.8413447460685429},
		{"swish", 0, 0},
		{"sigmoid", 0, 0.5},
	}
	for _, tt := range tests {
		a, err := lookupActivation(tt.act)
		if err != nil {
			t.Fatalf("lookupActivation(%q): %v", tt.act, err)
		}
		if got := a.fn(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s(%v) = %v, want %v", tt.act, tt.in, got, tt.want)
		}
	}
}

func TestActivations_DerivativeMatchesFiniteDifference(t *testing.T) {
	points := []float64{-2.1, -0.7, -0.3, 0.4, 1.3, 2.8}
	const h = 1e-6
	for _, name := range ActivationNames() {
		a, err := lookupActivation(name)
		if err != nil {
			t.Fatalf("lookupActivation(%q): %v", name, err)
		}
		for _, x := range points {
			got := a.deriv(x)
			want := (a.fn(x+h) - a.fn(x-h)) / (2 * h)
			if math.Abs(got-want) > 1e-4 {
				t.Errorf("%s'(%v) = %v, finite difference gives %v", name, x, got, want)
			}
		}
	}
}

func TestLookupActivation_Defaults(t *testing.T) {
	a, err := lookupActivation("")
	if err != nil {
		t.Fatalf("lookupActivation(\"\"): %v", err)
	}
	if got := a.fn(3.5); got != 3.5 {
		t.Errorf("empty name should resolve to linear, fn(3.5) = %v", got)
	}
	if _, err := lookupActivation("tanhx"); err == nil {
		t.Error("expected error for unknown activation name")
	}
}

func TestSoftmaxRows(t *testing.T) {
	logits := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		1000, 1000, 1000,
		-500, 0, 500,
	})
	probs := SoftmaxRows(logits)
	for i := 0; i < 3; i++ {
		var sum float64
		for j := 0; j < 3; j++ {
			p := probs.At(i, j)
			if math.IsNaN(p) || p < 0 || p > 1 {
				t.Fatalf("probs[%d,%d] = %v out of range", i, j, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("row %d sums to %v, want 1", i, sum)
		}
	}
	// 等 logits 行应给出均匀分布
	if got := probs.At(1, 0); math.Abs(got-1.0/3) > 1e-12 {
		t.Errorf("uniform row gives %v, want 1/3", got)
	}
	// 常数平移不改变 softmax
	shifted := SoftmaxRows(mat.NewDense(1, 3, []float64{11, 12, 13}))
	base := SoftmaxRows(mat.NewDense(1, 3, []float64{1, 2, 3}))
	for j := 0; j < 3; j++ {
		if math.Abs(shifted.At(0, j)-base.At(0, j)) > 1e-12 {
			t.Errorf("softmax not shift invariant at col %d: %v vs %v", j, shifted.At(0, j), base.At(0, j))
		}
	}
}
