package search

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/bhavanareddy19/cardicarrestnewborn/config"
	"github.com/bhavanareddy19/cardicarrestnewborn/core"
)

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestDefaultSpace_SampleStaysInBounds(t *testing.T) {
	space := DefaultSpace()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		cand := space.Sample(rng)
		cfg := cand.Model

		widths, ok := cfg["widths"].([]int)
		if !ok {
			t.Fatalf("sample %d: widths is %T, want []int", i, cfg["widths"])
		}
		if len(widths) < space.MinLayers || len(widths) > space.MaxLayers {
			t.Fatalf("sample %d: %d layers outside [%d,%d]", i, len(widths), space.MinLayers, space.MaxLayers)
		}
		for _, w := range widths {
			if w < space.WidthMin || w > space.WidthMax || w%space.WidthStep != 0 {
				t.Fatalf("sample %d: width %d outside grid", i, w)
			}
		}

		act := cfg["activation"].(string)
		if !contains(space.Activations, act) {
			t.Fatalf("sample %d: unexpected activation %q", i, act)
		}
		if init := cfg["init"].(string); !contains(space.Inits, init) {
			t.Fatalf("sample %d: unexpected init %q", i, init)
		}
		if norm := cfg["norm"].(string); !contains(space.Norms, norm) {
			t.Fatalf("sample %d: unexpected norm %q", i, norm)
		}

		drop := cfg["dropout"].(float64)
		if drop < 0 || drop > space.DropoutMax+1e-12 {
			t.Fatalf("sample %d: dropout %v outside [0,%v]", i, drop, space.DropoutMax)
		}
		steps := drop / space.DropoutStep
		if math.Abs(steps-math.Round(steps)) > 1e-9 {
			t.Fatalf("sample %d: dropout %v not on the %v grid", i, drop, space.DropoutStep)
		}

		lr := cfg["learning_rate"].(float64)
		if lr < space.LRMin || lr > space.LRMax {
			t.Fatalf("sample %d: learning rate %v outside [%v,%v]", i, lr, space.LRMin, space.LRMax)
		}
		l2 := cfg["l2"].(float64)
		if l2 < space.L2Min || l2 > space.L2Max {
			t.Fatalf("sample %d: l2 %v outside [%v,%v]", i, l2, space.L2Min, space.L2Max)
		}

		opt := cfg["optimizer"].(string)
		if !contains(space.Optimizers, opt) {
			t.Fatalf("sample %d: unexpected optimizer %q", i, opt)
		}
		wd, hasWD := cfg["weight_decay"]
		if opt == "adamw" {
			if !hasWD || wd.(float64) != space.WeightDecay {
				t.Fatalf("sample %d: adamw needs weight_decay %v, got %v", i, space.WeightDecay, wd)
			}
		} else if hasWD {
			t.Fatalf("sample %d: %s must not carry weight_decay", i, opt)
		}

		if !containsInt(space.BatchSizes, cand.BatchSize) {
			t.Fatalf("sample %d: unexpected batch size %d", i, cand.BatchSize)
		}
	}
}

func TestSample_DeterministicForSeed(t *testing.T) {
	space := DefaultSpace()
	a := rand.New(rand.NewSource(99))
	b := rand.New(rand.NewSource(99))
	for i := 0; i < 10; i++ {
		ca := space.Sample(a)
		cb := space.Sample(b)
		if !reflect.DeepEqual(ca, cb) {
			t.Fatalf("sample %d diverged for identical seeds:\n%v\n%v", i, ca, cb)
		}
	}
}

func TestSample_EveryCandidateBuilds(t *testing.T) {
	// 空间里的每个点都必须能走通声明式构建路径。
	space := DefaultSpace()
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		cand := space.Sample(rng)
		cand.Model["name"] = fmt.Sprintf("trial_%d", i)
		cand.Model["seed"] = 100 + i
		net, err := config.Build("spec", cand.Model)
		if err != nil {
			t.Fatalf("candidate %d failed to build: %v\nconfig: %v", i, err, cand.Model)
		}
		if net.Kind() != core.KindTabular {
			t.Fatalf("candidate %d built kind %v, want tabular", i, net.Kind())
		}
	}
}

func TestWithDefaults_FillsOnlyZeroFields(t *testing.T) {
	s := Space{
		MinLayers:   3,
		Activations: []string{"relu"},
		BatchSizes:  []int{32},
	}.withDefaults()

	if s.MinLayers != 3 {
		t.Errorf("MinLayers = %d, want 3 preserved", s.MinLayers)
	}
	if len(s.Activations) != 1 || s.Activations[0] != "relu" {
		t.Errorf("Activations = %v, want [relu] preserved", s.Activations)
	}
	if len(s.BatchSizes) != 1 || s.BatchSizes[0] != 32 {
		t.Errorf("BatchSizes = %v, want [32] preserved", s.BatchSizes)
	}

	def := DefaultSpace()
	if s.MaxLayers != def.MaxLayers || s.WidthMin != def.WidthMin || s.WidthStep != def.WidthStep {
		t.Errorf("zero layout fields not defaulted: %+v", s)
	}
	if s.LRMin != def.LRMin || s.LRMax != def.LRMax || s.L2Min != def.L2Min {
		t.Errorf("zero range fields not defaulted: %+v", s)
	}
	if len(s.Optimizers) != len(def.Optimizers) || len(s.Inits) != len(def.Inits) {
		t.Errorf("zero choice fields not defaulted: %+v", s)
	}
}

func TestWithDefaults_ClampsInvertedBounds(t *testing.T) {
	s := Space{MinLayers: 10, MaxLayers: 4}.withDefaults()
	if s.MaxLayers < s.MinLayers {
		t.Fatalf("MaxLayers %d still below MinLayers %d", s.MaxLayers, s.MinLayers)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		cand := s.Sample(rng)
		if got := len(cand.Model["widths"].([]int)); got != 10 {
			t.Fatalf("clamped space sampled %d layers, want exactly 10", got)
		}
	}
}

func TestLogUniform_StaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	lo, hi := 1e-5, 1e-2
	var belowMid int
	for i := 0; i < 1000; i++ {
		v := logUniform(rng, lo, hi)
		if v < lo || v > hi {
			t.Fatalf("logUniform produced %v outside [%v,%v]", v, lo, hi)
		}
		// 对数均匀抽样应有约三分之二的质量落在几何中点以下
		if v < 1e-3 {
			belowMid++
		}
	}
	if belowMid < 550 || belowMid > 780 {
		t.Errorf("log-uniform mass below 1e-3 = %d/1000, want roughly two thirds", belowMid)
	}
}
