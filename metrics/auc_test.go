package metrics

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBinaryROCAUC(t *testing.T) {
	tests := []struct {
		name      string
		scores    []float64
		positives []bool
		want      float64
	}{
		{
			name:      "classic three quarters",
			scores:    []float64{0.1, 0.4, 0.35, 0.8},
			positives: []bool{false, false, true, true},
			want:      0.75,
		},
		{
			name:      "perfect separation",
			scores:    []float64{0.1, 0.2, 0.8, 0.9},
			positives: []bool{false, false, true, true},
			want:      1,
		},
		{
			name:      "inverted ranking",
			scores:    []float64{0.9, 0.8, 0.2, 0.1},
			positives: []bool{false, false, true, true},
			want:      0,
		},
		{
			name:      "all scores tied",
			scores:    []float64{0.5, 0.5, 0.5, 0.5},
			positives: []bool{true, false, true, false},
			want:      0.5,
		},
	}
	for _, tt := range tests {
		got, err := BinaryROCAUC(tt.scores, tt.positives)
		if err != nil {
			t.Fatalf("%s: BinaryROCAUC: %v", tt.name, err)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: AUC = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBinaryROCAUC_Errors(t *testing.T) {
	if _, err := BinaryROCAUC([]float64{0.1, 0.9}, []bool{true, true}); err == nil {
		t.Error("expected error when only one class is present")
	}
	if _, err := BinaryROCAUC([]float64{0.1}, []bool{true, false}); err == nil {
		t.Error("expected error on length mismatch")
	}
}

func TestBinaryROCAUC_DoesNotMutateInput(t *testing.T) {
	scores := []float64{0.9, 0.1, 0.5}
	positives := []bool{true, false, true}
	if _, err := BinaryROCAUC(scores, positives); err != nil {
		t.Fatalf("BinaryROCAUC: %v", err)
	}
	if scores[0] != 0.9 || scores[1] != 0.1 || scores[2] != 0.5 {
		t.Errorf("scores mutated: %v", scores)
	}
	if !positives[0] || positives[1] || !positives[2] {
		t.Errorf("labels mutated: %v", positives)
	}
}

func TestPerClassAndMacroAUC(t *testing.T) {
	// 两类互补概率：两个一对多任务的 AUC 都是 0.75
	probs := mat.NewDense(4, 2, []float64{
		0.9, 0.1,
		0.6, 0.4,
		0.65, 0.35,
		0.2, 0.8,
	})
	labels := []int{0, 0, 1, 1}

	aucs, err := PerClassAUC(probs, labels)
	if err != nil {
		t.Fatalf("PerClassAUC: %v", err)
	}
	for c, a := range aucs {
		if math.Abs(a-0.75) > 1e-12 {
			t.Errorf("class %d AUC = %v, want 0.75", c, a)
		}
	}
	macro, err := MacroAUC(probs, labels)
	if err != nil {
		t.Fatalf("MacroAUC: %v", err)
	}
	if math.Abs(macro-0.75) > 1e-12 {
		t.Errorf("macro AUC = %v, want 0.75", macro)
	}
}

func TestWeightedAUC_UsesSupport(t *testing.T) {
	// class0 完美（AUC 1），class1 只有 2/3，支持度 3:1
	probs := mat.NewDense(4, 2, []float64{
		0.9, 0.1,
		0.8, 0.2,
		0.7, 0.6,
		0.1, 0.4,
	})
	labels := []int{0, 0, 0, 1}

	macro, err := MacroAUC(probs, labels)
	if err != nil {
		t.Fatalf("MacroAUC: %v", err)
	}
	if want := (1 + 2.0/3) / 2; math.Abs(macro-want) > 1e-12 {
		t.Errorf("macro AUC = %v, want %v", macro, want)
	}

	weighted, err := WeightedAUC(probs, labels)
	if err != nil {
		t.Fatalf("WeightedAUC: %v", err)
	}
	if want := 0.75*1 + 0.25*(2.0/3); math.Abs(weighted-want) > 1e-12 {
		t.Errorf("weighted AUC = %v, want %v", weighted, want)
	}
}

func TestMacroAUC_MissingClassInLabels(t *testing.T) {
	probs := mat.NewDense(2, 3, []float64{
		0.8, 0.1, 0.1,
		0.2, 0.7, 0.1,
	})
	if _, err := MacroAUC(probs, []int{0, 1}); err == nil {
		t.Error("expected error when a class has no positives")
	}
}

func TestArgmaxRows(t *testing.T) {
	probs := mat.NewDense(3, 3, []float64{
		0.7, 0.2, 0.1,
		0.1, 0.3, 0.6,
		0.2, 0.5, 0.3,
	})
	got := ArgmaxRows(probs)
	want := []int{0, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d argmax = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReport_HandComputed(t *testing.T) {
	truth := []int{0, 0, 1, 1, 2, 2}
	pred := []int{0, 1, 1, 1, 2, 0}
	rep, err := Report(pred, truth, []string{"Low", "Medium", "High"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if math.Abs(rep.Accuracy-4.0/6) > 1e-12 {
		t.Errorf("accuracy = %v, want %v", rep.Accuracy, 4.0/6)
	}

	wantConfusion := [][]int{
		{1, 1, 0},
		{0, 2, 0},
		{1, 0, 1},
	}
	for i := range wantConfusion {
		for j := range wantConfusion[i] {
			if rep.Confusion[i][j] != wantConfusion[i][j] {
				t.Errorf("confusion[%d][%d] = %d, want %d", i, j, rep.Confusion[i][j], wantConfusion[i][j])
			}
		}
	}

	checks := []struct {
		class     int
		precision float64
		recall    float64
		f1        float64
	}{
		{0, 0.5, 0.5, 0.5},
		{1, 2.0 / 3, 1, 0.8},
		{2, 1, 0.5, 2.0 / 3},
	}
	for _, c := range checks {
		m := rep.Classes[c.class]
		if math.Abs(m.Precision-c.precision) > 1e-12 {
			t.Errorf("class %d precision = %v, want %v", c.class, m.Precision, c.precision)
		}
		if math.Abs(m.Recall-c.recall) > 1e-12 {
			t.Errorf("class %d recall = %v, want %v", c.class, m.Recall, c.recall)
		}
		if math.Abs(m.F1-c.f1) > 1e-12 {
			t.Errorf("class %d f1 = %v, want %v", c.class, m.F1, c.f1)
		}
		if m.Support != 2 {
			t.Errorf("class %d support = %d, want 2", c.class, m.Support)
		}
	}

	// 支持度均衡时加权平均与宏平均一致
	if math.Abs(rep.Macro.F1-rep.Weighted.F1) > 1e-12 {
		t.Errorf("balanced macro f1 %v != weighted f1 %v", rep.Macro.F1, rep.Weighted.F1)
	}
}

func TestReport_ZeroDivisionIsZero(t *testing.T) {
	// 全部预测为类 0：类 1 的精确率与召回率退化为 0 而不是 NaN
	rep, err := Report([]int{0, 0, 0}, []int{0, 1, 1}, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	m := rep.Classes[1]
	if m.Precision != 0 || m.Recall != 0 || m.F1 != 0 {
		t.Errorf("degenerate class metrics = %+v, want zeros", m)
	}
	if math.IsNaN(rep.Weighted.F1) {
		t.Error("weighted f1 is NaN")
	}
}

func TestReport_Errors(t *testing.T) {
	if _, err := Report([]int{0}, []int{0, 1}, []string{"a", "b"}); err == nil {
		t.Error("expected error on length mismatch")
	}
	if _, err := Report([]int{5}, []int{0}, []string{"a", "b"}); err == nil {
		t.Error("expected error on out-of-range prediction")
	}
	if _, err := Report(nil, nil, []string{"a"}); err == nil {
		t.Error("expected error on empty input")
	}
}

func TestReport_StringRendering(t *testing.T) {
	rep, err := Report([]int{0, 1}, []int{0, 1}, []string{"Low", "High"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	s := rep.String()
	for _, frag := range []string{"precision", "accuracy", "macro avg", "weighted avg", "Low", "High"} {
		if !strings.Contains(s, frag) {
			t.Errorf("report text missing %q:\n%s", frag, s)
		}
	}
}
