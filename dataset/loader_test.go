package dataset

import (
	"strings"
	"testing"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

const sampleHeader = "BirthWeight,FamilyHistory,PretermBirth,HeartRate,BreathingDifficulty,SkinTinge,Responsiveness,Movement,DeliveryType,MothersBPHistory,CardiacArrestChance"

func sampleRow(weight, target string) string {
	return strings.Join([]string{
		weight, "NoCases", "NotaPreTerm", "NormalHeartRate", "NoBreathingDifficulty",
		"NotBluish", "Responsive", "NormalMovement", "NormalDelivery", "BPInRange", target,
	}, ",")
}

func TestDecode_EncodesKnownValues(t *testing.T) {
	csvData := strings.Join([]string{
		sampleHeader,
		sampleRow("WeightTooLow", "Low"),
		sampleRow("LowWeight", "Medium"),
		sampleRow("NormalWeight", "High"),
	}, "\n")

	ds, err := Decode(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ds.Len())
	}

	// BirthWeight="WeightTooLow" maps to level 3, CardiacArrestChance="Low" to label 0.
	if got := ds.Raw.At(0, 0); got != 3 {
		t.Errorf("row 0 BirthWeight level = %v, want 3", got)
	}
	if ds.Labels[0] != 0 {
		t.Errorf("row 0 label = %d, want 0", ds.Labels[0])
	}
	if ds.Labels[1] != 1 {
		t.Errorf("row 1 label = %d, want 1", ds.Labels[1])
	}
	if ds.Labels[2] != 2 {
		t.Errorf("row 2 label = %d, want 2", ds.Labels[2])
	}

	// Raw strings survive for the text/embedding collaborators.
	if got := ds.Records[0].Value("BirthWeight"); got != "WeightTooLow" {
		t.Errorf("record 0 BirthWeight = %q, want WeightTooLow", got)
	}
	if err := ds.Validate(); err != nil {
		t.Errorf("Validate() on clean data error = %v", err)
	}
}

func TestDecode_ColumnOrderIndependent(t *testing.T) {
	// Target column first, one feature moved: header names drive the mapping.
	csvData := "CardiacArrestChance,MothersBPHistory,BirthWeight,FamilyHistory,PretermBirth,HeartRate,BreathingDifficulty,SkinTinge,Responsiveness,Movement,DeliveryType\n" +
		"High,VeryHighBP,WeightTooLow,NoCases,NotaPreTerm,NormalHeartRate,NoBreathingDifficulty,NotBluish,Responsive,NormalMovement,NormalDelivery"

	ds, err := Decode(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ds.Labels[0] != 2 {
		t.Errorf("label = %d, want 2", ds.Labels[0])
	}
	if got := ds.Raw.At(0, 0); got != 3 {
		t.Errorf("BirthWeight level = %v, want 3", got)
	}
	// MothersBPHistory is the last feature column regardless of file order.
	if got := ds.Raw.At(0, core.NumFeatures-1); got != 3 {
		t.Errorf("MothersBPHistory level = %v, want 3", got)
	}
}

func TestDecode_MissingColumn(t *testing.T) {
	csvData := "BirthWeight,CardiacArrestChance\nWeightTooLow,Low"
	_, err := Decode(strings.NewReader(csvData))
	if err == nil {
		t.Fatal("Decode() with missing columns expected error, got nil")
	}
	if !core.IsInvalidConfig(err) {
		t.Errorf("Decode() error = %v, want INVALID_CONFIG", err)
	}
}

func TestDecode_UnknownCategorySurfacesAtValidate(t *testing.T) {
	csvData := strings.Join([]string{
		sampleHeader,
		sampleRow("WeightTooLow", "Low"),
		sampleRow("Chonky", "Low"), // unknown BirthWeight value
	}, "\n")

	ds, err := Decode(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Decode() error = %v, unknown values must load as NaN not fail", err)
	}

	err = ds.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for unmapped category, got nil")
	}
	if !core.IsDataContract(err) {
		t.Errorf("Validate() error = %v, want data contract error", err)
	}
	if de := core.GetDomainError(err); de == nil || de.Code != core.ErrorCodeUnmappedCategory {
		t.Errorf("Validate() error code = %v, want UNMAPPED_CATEGORY", err)
	}
}

func TestDecode_UnknownTargetSurfacesAtValidate(t *testing.T) {
	csvData := strings.Join([]string{
		sampleHeader,
		sampleRow("WeightTooLow", "Severe"),
	}, "\n")

	ds, err := Decode(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ds.Labels[0] != -1 {
		t.Errorf("unknown target encoded as %d, want -1", ds.Labels[0])
	}
	if err := ds.Validate(); err == nil {
		t.Error("Validate() expected error for unknown target, got nil")
	}
}

func TestDecode_CohortFilter(t *testing.T) {
	csvData := strings.Join([]string{
		sampleHeader,
		sampleRow("WeightTooLow", "High"),
		sampleRow("NormalWeight", "Low"),
		sampleRow("LowWeight", "Medium"),
	}, "\n")

	ds, err := Decode(strings.NewReader(csvData), WithFilter(`level.BirthWeight >= 2`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("filtered Len() = %d, want 2", ds.Len())
	}
	// Source row indices stay stable after filtering.
	if ds.Records[0].Index != 0 || ds.Records[1].Index != 2 {
		t.Errorf("record indices = [%d %d], want [0 2]",
			ds.Records[0].Index, ds.Records[1].Index)
	}

	_, err = Decode(strings.NewReader(csvData), WithFilter(`row.BirthWeight ==`))
	if err == nil {
		t.Error("Decode() with malformed filter expected error, got nil")
	}
}
