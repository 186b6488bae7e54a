package dataset

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

// syntheticDataset builds a dataset with the given per-class record counts.
// Feature values are valid levels so Validate passes.
func syntheticDataset(classCounts []int) *Dataset {
	ds := &Dataset{}
	var flat []float64
	idx := 0
	for class, count := range classCounts {
		for i := 0; i < count; i++ {
			ds.Records = append(ds.Records, core.Record{Index: idx})
			ds.Labels = append(ds.Labels, class)
			for j := 0; j < core.NumFeatures; j++ {
				flat = append(flat, float64(1+(idx+j)%3))
			}
			idx++
		}
	}
	ds.Raw = mat.NewDense(idx, core.NumFeatures, flat)
	return ds
}

func TestStratifiedSplit_Sizes1000Balanced(t *testing.T) {
	ds := syntheticDataset([]int{334, 333, 333})

	splits, err := StratifiedSplit(ds, 0.15, 0.15, 42)
	if err != nil {
		t.Fatalf("StratifiedSplit() error = %v", err)
	}

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"train", splits.Train.Len(), 700},
		{"validation", splits.Validation.Len(), 150},
		{"test", splits.Test.Len(), 150},
	}
	for _, tt := range tests {
		if math.Abs(float64(tt.got-tt.want)) > 1 {
			t.Errorf("%s partition size = %d, want %d (±1)", tt.name, tt.got, tt.want)
		}
	}
	total := splits.Train.Len() + splits.Validation.Len() + splits.Test.Len()
	if total != 1000 {
		t.Errorf("partitions cover %d records, want 1000", total)
	}
}

func TestStratifiedSplit_Deterministic(t *testing.T) {
	ds := syntheticDataset([]int{120, 90, 60})

	first, err := StratifiedSplit(ds, 0.15, 0.15, 42)
	if err != nil {
		t.Fatalf("StratifiedSplit() error = %v", err)
	}
	second, err := StratifiedSplit(ds, 0.15, 0.15, 42)
	if err != nil {
		t.Fatalf("repeat StratifiedSplit() error = %v", err)
	}

	pairs := []struct {
		name string
		a, b *Partition
	}{
		{"train", first.Train, second.Train},
		{"validation", first.Validation, second.Validation},
		{"test", first.Test, second.Test},
	}
	for _, p := range pairs {
		if len(p.a.Indices) != len(p.b.Indices) {
			t.Fatalf("%s sizes differ: %d vs %d", p.name, len(p.a.Indices), len(p.b.Indices))
		}
		for i := range p.a.Indices {
			if p.a.Indices[i] != p.b.Indices[i] {
				t.Errorf("%s indices diverge at %d: %d vs %d", p.name, i, p.a.Indices[i], p.b.Indices[i])
				break
			}
		}
	}
}

func TestStratifiedSplit_PreservesClassProportions(t *testing.T) {
	ds := syntheticDataset([]int{500, 300, 200})

	splits, err := StratifiedSplit(ds, 0.15, 0.15, 7)
	if err != nil {
		t.Fatalf("StratifiedSplit() error = %v", err)
	}

	for _, p := range splits.Partitions() {
		counts := p.ClassCounts()
		frac := float64(p.Len()) / float64(ds.Len())
		for class, sourceCount := range ds.ClassCounts() {
			want := frac * float64(sourceCount)
			if math.Abs(float64(counts[class])-want) > 1.5 {
				t.Errorf("partition %q class %d count = %d, want ≈ %.1f",
					p.Name, class, counts[class], want)
			}
		}
	}
}

func TestStratifiedSplit_DisjointAndExhaustive(t *testing.T) {
	ds := syntheticDataset([]int{40, 35, 25})

	splits, err := StratifiedSplit(ds, 0.2, 0.2, 1)
	if err != nil {
		t.Fatalf("StratifiedSplit() error = %v", err)
	}

	seen := make(map[int]string)
	for _, p := range splits.Partitions() {
		for _, idx := range p.Indices {
			if prev, dup := seen[idx]; dup {
				t.Errorf("index %d appears in both %q and %q", idx, prev, p.Name)
			}
			seen[idx] = p.Name
		}
	}
	if len(seen) != ds.Len() {
		t.Errorf("partitions cover %d distinct records, want %d", len(seen), ds.Len())
	}
}

func TestStratifiedSplit_MissingClassIsFatal(t *testing.T) {
	// A single record of class 2 cannot appear in all three partitions.
	ds := syntheticDataset([]int{30, 30, 1})

	_, err := StratifiedSplit(ds, 0.15, 0.15, 42)
	if err == nil {
		t.Fatal("StratifiedSplit() expected MISSING_CLASS error, got nil")
	}
	de := core.GetDomainError(err)
	if de == nil || de.Code != core.ErrorCodeMissingClass {
		t.Errorf("StratifiedSplit() error = %v, want MISSING_CLASS", err)
	}
}

func TestStratifiedSplit_RejectsCorruptRows(t *testing.T) {
	ds := syntheticDataset([]int{20, 20, 20})
	ds.Raw.Set(3, 2, math.NaN())

	_, err := StratifiedSplit(ds, 0.15, 0.15, 42)
	if err == nil {
		t.Fatal("StratifiedSplit() expected UNMAPPED_CATEGORY error, got nil")
	}
	if !core.IsDataContract(err) {
		t.Errorf("StratifiedSplit() error = %v, want data contract error", err)
	}
}

func TestStratifiedSplit_InvalidFractions(t *testing.T) {
	ds := syntheticDataset([]int{20, 20, 20})

	tests := []struct {
		name     string
		testFrac float64
		valFrac  float64
	}{
		{"zero test fraction", 0, 0.15},
		{"negative val fraction", 0.15, -0.1},
		{"fractions sum to one", 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := StratifiedSplit(ds, tt.testFrac, tt.valFrac, 42); err == nil {
				t.Errorf("StratifiedSplit(%v, %v) expected error, got nil", tt.testFrac, tt.valFrac)
			}
		})
	}
}

func TestSplitAndScale(t *testing.T) {
	ds := syntheticDataset([]int{100, 80, 60})

	splits, err := SplitAndScale(ds, 0.15, 0.15, 42)
	if err != nil {
		t.Fatalf("SplitAndScale() error = %v", err)
	}
	if splits.Scaler == nil || !splits.Scaler.Fitted() {
		t.Fatal("SplitAndScale() did not fit the scaler")
	}

	for _, p := range splits.Partitions() {
		if p.Scaled == nil {
			t.Fatalf("partition %q has no scaled matrix", p.Name)
		}
		r, c := p.Scaled.Dims()
		if r != p.Len() || c != core.NumFeatures {
			t.Errorf("partition %q scaled dims = %dx%d, want %dx%d", p.Name, r, c, p.Len(), core.NumFeatures)
		}
	}

	// Train columns are standardized: mean ≈ 0 within float tolerance.
	rows, cols := splits.Train.Scaled.Dims()
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += splits.Train.Scaled.At(i, j)
		}
		if mean := sum / float64(rows); math.Abs(mean) > 1e-9 {
			t.Errorf("train scaled column %d mean = %v, want ≈ 0", j, mean)
		}
	}

	// The batch carries both representations and rejects misaligned aux input.
	b, err := splits.Validation.Batch(nil)
	if err != nil {
		t.Fatalf("Batch(nil) error = %v", err)
	}
	if b.Tabular == nil || b.Raw == nil || b.Aux != nil {
		t.Error("Batch(nil) should carry tabular and raw matrices only")
	}
	wrongAux := mat.NewDense(3, 8, nil)
	if _, err := splits.Validation.Batch(wrongAux); err == nil {
		t.Error("Batch() with misaligned aux matrix expected ROW_MISMATCH, got nil")
	}
}
