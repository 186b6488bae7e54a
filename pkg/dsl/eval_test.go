package dsl

import (
	"strings"
	"testing"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

func sampleRecord() core.Record {
	return core.Record{
		Index: 42,
		Values: map[string]string{
			"BirthWeight":  "WeightTooLow",
			"DeliveryType": "C_Section",
		},
		Target: "High",
	}
}

func TestFilter_Match(t *testing.T) {
	levels := map[string]int{"BirthWeight": 3, "DeliveryType": 3}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"empty expression matches all", "", true},
		{"raw value equality", `row.BirthWeight == "WeightTooLow"`, true},
		{"raw value mismatch", `row.DeliveryType == "NormalDelivery"`, false},
		{"encoded level comparison", `level.BirthWeight >= 2`, true},
		{"target membership", `target in ["Medium", "High"]`, true},
		{"row index bound", `index < 10`, false},
		{"conjunction", `row.DeliveryType == "C_Section" && level.BirthWeight >= 2`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.expr)
			if err != nil {
				t.Fatalf("NewFilter(%q) failed: %v", tt.expr, err)
			}
			got, err := f.Match(sampleRecord(), levels)
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestNewFilter_CompileError(t *testing.T) {
	if _, err := NewFilter(`row.BirthWeight ==`); err == nil {
		t.Fatal("NewFilter with malformed expression should fail")
	}
}

func TestFilter_NonBooleanResult(t *testing.T) {
	f, err := NewFilter(`index + 1`)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	_, err = f.Match(sampleRecord(), nil)
	if err == nil || !strings.Contains(err.Error(), "boolean") {
		t.Errorf("Match with numeric expression = %v, want boolean type error", err)
	}
}

func TestFilter_String(t *testing.T) {
	f, err := NewFilter(`target == "Low"`)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	if f.String() != `target == "Low"` {
		t.Errorf("String = %q, want original expression", f.String())
	}
}
