package evo

import (
	"math/rand"
	"testing"

	"gatenet/internal/model"
)

func rankedGenomes(fitness ...float64) []ScoredGenome {
	ranked := make([]ScoredGenome, len(fitness))
	for i, f := range fitness {
		ranked[i] = ScoredGenome{Genome: model.Genome{ID: string(rune('a' + i))}, Fitness: f}
	}
	return ranked
}

func TestEliteSelectorPicksFromTop(t *testing.T) {
	ranked := rankedGenomes(0.9, 0.8, 0.3, 0.1)
	rng := rand.New(rand.NewSource(1))
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		parent, err := EliteSelector{}.PickParent(rng, ranked, 2)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		if parent.ID != "a" && parent.ID != "b" {
			t.Fatalf("picked non-elite parent: %s", parent.ID)
		}
		seen[parent.ID] = true
	}
	if len(seen) != 2 {
		t.Fatalf("expected both elites picked, got %v", seen)
	}
}

func TestTournamentSelectorPrefersFitter(t *testing.T) {
	ranked := rankedGenomes(0.9, 0.8, 0.3, 0.1)
	rng := rand.New(rand.NewSource(2))
	counts := map[string]int{}
	for i := 0; i < 400; i++ {
		parent, err := TournamentSelector{PoolSize: 4, TournamentSize: 3}.PickParent(rng, ranked, 1)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		counts[parent.ID]++
	}
	if counts["a"] <= counts["d"] {
		t.Fatalf("tournament did not favor fitter genomes: %v", counts)
	}

	// A single-entrant tournament over a single-entry pool is the best genome.
	parent, err := TournamentSelector{PoolSize: 1, TournamentSize: 1}.PickParent(rng, ranked, 1)
	if err != nil || parent.ID != "a" {
		t.Fatalf("unexpected parent: %s err=%v", parent.ID, err)
	}
}

func TestSelectorsRejectBadInputs(t *testing.T) {
	ranked := rankedGenomes(0.5, 0.4)
	for _, s := range []Selector{EliteSelector{}, TournamentSelector{}} {
		if _, err := s.PickParent(nil, ranked, 1); err == nil {
			t.Fatalf("%s: expected nil random source error", s.Name())
		}
		if _, err := s.PickParent(rand.New(rand.NewSource(1)), ranked, 3); err == nil {
			t.Fatalf("%s: expected elite count error", s.Name())
		}
	}
}

func TestParseSelector(t *testing.T) {
	s, err := ParseSelector("tournament", 6, 2)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts, ok := s.(TournamentSelector); !ok || ts.PoolSize != 6 || ts.TournamentSize != 2 {
		t.Fatalf("unexpected selector: %#v", s)
	}
	if s, err := ParseSelector("", 0, 0); err != nil || s.Name() != "elite" {
		t.Fatalf("unexpected default selector: %v err=%v", s, err)
	}
	if _, err := ParseSelector("roulette", 0, 0); err == nil {
		t.Fatal("expected unsupported selector error")
	}
}
