package feature

import (
	"strings"
	"testing"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

func severeRecord() core.Record {
	return core.Record{
		Values: map[string]string{
			"BirthWeight":         "WeightTooLow",
			"FamilyHistory":       "AboveTwoCases",
			"PretermBirth":        "4orMoreWeeksEarlier",
			"HeartRate":           "RapidHeartRate",
			"BreathingDifficulty": "HighBreathingDifficulty",
			"SkinTinge":           "Bluish",
			"Responsiveness":      "UnResponsive",
			"Movement":            "Diminished",
			"DeliveryType":        "C_Section",
			"MothersBPHistory":    "VeryHighBP",
		},
		Target: "High",
	}
}

func TestClinicalNarrative(t *testing.T) {
	text := ClinicalNarrative(severeRecord())

	wantFragments := []string{
		"critically low birth weight",
		"more than two cases",
		"four or more weeks premature",
		"tachycardia",
		"severe respiratory distress",
		"cyanotic skin coloration",
		"unresponsive to external stimuli",
		"severely diminished motor activity",
		"cesarean section",
		"severe hypertension",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(text, frag) {
			t.Errorf("narrative missing fragment %q\ntext: %s", frag, text)
		}
	}

	// Vitals sentence keeps its fixed lead-in.
	if !strings.Contains(text, "The infant is presenting with a rapid heart rate") {
		t.Errorf("vitals sentence lead-in missing\ntext: %s", text)
	}

	if got := strings.Count(text, "."); got != 4 {
		t.Errorf("narrative has %d sentences, want 4", got)
	}
}

func TestClinicalNarrative_Deterministic(t *testing.T) {
	r := severeRecord()
	first := ClinicalNarrative(r)
	second := ClinicalNarrative(r)
	if first != second {
		t.Errorf("same record produced different narratives:\n%s\n%s", first, second)
	}
}

func TestClinicalNarrative_SkipsUnknownValues(t *testing.T) {
	r := severeRecord()
	r.Values["HeartRate"] = "Unknown"
	r.Values["BreathingDifficulty"] = ""
	text := ClinicalNarrative(r)

	if strings.Contains(text, "Unknown") {
		t.Errorf("unknown category leaked into narrative: %s", text)
	}
	// Remaining vitals phrase still renders.
	if !strings.Contains(text, "The infant is with cyanotic skin coloration") {
		t.Errorf("vitals sentence not rebuilt from remaining phrases: %s", text)
	}
}

func TestClinicalNarratives_RowOrder(t *testing.T) {
	records := []core.Record{
		severeRecord(),
		{Values: map[string]string{"BirthWeight": "NormalWeight"}},
	}
	texts := ClinicalNarratives(records)
	if len(texts) != 2 {
		t.Fatalf("ClinicalNarratives() returned %d texts, want 2", len(texts))
	}
	if !strings.Contains(texts[0], "critically low") {
		t.Errorf("texts[0] does not match first record: %s", texts[0])
	}
	if texts[1] != "The newborn has a normal birth weight." {
		t.Errorf("texts[1] = %q, want single-phrase sentence", texts[1])
	}
}
