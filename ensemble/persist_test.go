package ensemble

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/bhavanareddy19/cardicarrestnewborn/core"
	"github.com/bhavanareddy19/cardicarrestnewborn/model"
)

func savedPredictor(t *testing.T) *Predictor {
	t.Helper()
	specs := []model.Spec{
		{Name: "alpha", Widths: []int{12}, Seed: 11},
		{Name: "beta", Widths: []int{8, 8}, Activation: "gelu", Seed: 12},
	}
	members := make([]Member, 0, 3)
	for i, spec := range specs {
		net, err := spec.Build()
		if err != nil {
			t.Fatalf("build %s: %v", spec.Name, err)
		}
		members = append(members, Member{Model: net, AUC: 0.9 - 0.05*float64(i)})
	}
	fusion, err := model.NewBERTFusion(13, 4)
	if err != nil {
		t.Fatalf("build fusion: %v", err)
	}
	members = append(members, Member{Model: fusion, AUC: 0.79})
	return NewFromMembers(members)
}

func matsMatch(t *testing.T, name string, got, want *mat.Dense) {
	t.Helper()
	gr, gc := got.Dims()
	wr, wc := want.Dims()
	if gr != wr || gc != wc {
		t.Fatalf("%s dims = %dx%d, want %dx%d", name, gr, gc, wr, wc)
	}
	for i := 0; i < gr; i++ {
		for j := 0; j < gc; j++ {
			if diff := math.Abs(got.At(i, j) - want.At(i, j)); diff > 1e-12 {
				t.Fatalf("%s (%d,%d) = %v, want %v", name, i, j, got.At(i, j), want.At(i, j))
			}
		}
	}
}

func TestSaveAllLoadAll_RoundTrip(t *testing.T) {
	p := savedPredictor(t)
	dir := t.TempDir()
	if err := p.SaveAll(dir); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	// 每个成员一个工件目录，外加与花名册对齐的有序 AUC 向量。
	for _, name := range p.Names() {
		if _, err := os.Stat(filepath.Join(dir, name, "model.json")); err != nil {
			t.Fatalf("artifact for %s: %v", name, err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, "individual_aucs.json"))
	if err != nil {
		t.Fatalf("read auc vector: %v", err)
	}
	var records []struct {
		Name string  `json:"name"`
		AUC  float64 `json:"auc"`
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("decode auc vector: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("auc vector has %d entries, want 3", len(records))
	}
	for i, m := range p.Members() {
		if records[i].Name != m.Name() || records[i].AUC != m.AUC {
			t.Errorf("auc vector[%d] = %+v, want {%s %v}", i, records[i], m.Name(), m.AUC)
		}
	}

	loaded, err := LoadAll(dir)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if loaded.State() != StateTrained {
		t.Fatalf("loaded state = %v, want %v", loaded.State(), StateTrained)
	}
	wantNames := p.Names()
	gotNames := loaded.Names()
	if len(gotNames) != len(wantNames) {
		t.Fatalf("loaded roster %v, want %v", gotNames, wantNames)
	}
	for i := range wantNames {
		if gotNames[i] != wantNames[i] {
			t.Fatalf("loaded roster %v, want %v", gotNames, wantNames)
		}
		if loaded.Members()[i].AUC != p.Members()[i].AUC {
			t.Errorf("member %s AUC = %v, want %v", wantNames[i], loaded.Members()[i].AUC, p.Members()[i].AUC)
		}
	}

	// 重建的权重必须逐元素一致：同一批次上的聚合预测不可漂移。
	in := randomBatch(5, 4, 33)
	wantProbs, err := p.PredictWeighted(in)
	if err != nil {
		t.Fatalf("original PredictWeighted: %v", err)
	}
	gotProbs, err := loaded.PredictWeighted(in)
	if err != nil {
		t.Fatalf("loaded PredictWeighted: %v", err)
	}
	matsMatch(t, "weighted probs", gotProbs, wantProbs)
}

func TestLoadAll_ExcludesMembersWithMissingArtifacts(t *testing.T) {
	p := savedPredictor(t)
	dir := t.TempDir()
	if err := p.SaveAll(dir); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(dir, "beta")); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}

	loaded, err := LoadAll(dir)
	if err != nil {
		t.Fatalf("LoadAll with missing artifact: %v", err)
	}
	got := loaded.Names()
	if len(got) != 2 || got[0] != "alpha" || got[1] != model.NameBERTFusion {
		t.Fatalf("roster = %v, want [alpha %s]", got, model.NameBERTFusion)
	}
}

func TestLoadAll_MissingVectorIsNotFound(t *testing.T) {
	if _, err := LoadAll(t.TempDir()); !core.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND for empty artifact dir, got %v", err)
	}
}

func TestLoadAll_EmptyRosterIsNotFound(t *testing.T) {
	dir := t.TempDir()
	vector := []byte(`[{"name":"ghost","auc":0.9}]`)
	if err := os.WriteFile(filepath.Join(dir, "individual_aucs.json"), vector, 0o644); err != nil {
		t.Fatalf("write auc vector: %v", err)
	}
	if _, err := LoadAll(dir); !core.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND when every artifact is missing, got %v", err)
	}
}

func TestSaveAll_RequiresTrainedState(t *testing.T) {
	if err := New().SaveAll(t.TempDir()); err == nil {
		t.Fatal("expected error when saving an untrained ensemble")
	}
}
