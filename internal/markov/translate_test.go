package markov

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gatenet/internal/genome"
)

func TestTranslatorConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TranslatorConfig)
	}{
		{name: "zero-floor", mutate: func(c *TranslatorConfig) { c.InputFloor = 0 }},
		{name: "limit-not-above-floor", mutate: func(c *TranslatorConfig) { c.OutputLimit = c.OutputFloor }},
		{name: "history-range", mutate: func(c *TranslatorConfig) { c.HistoryLimit = 0 }},
		{name: "input-limit-too-wide", mutate: func(c *TranslatorConfig) { c.InputLimit = 70 }},
		{name: "input-limit-feedback-bits", mutate: func(c *TranslatorConfig) { c.InputLimit = MaxGateBits }},
		{name: "matrix-too-wide", mutate: func(c *TranslatorConfig) { c.InputLimit, c.OutputLimit = 10, 10 }},
		{name: "weight-steps", mutate: func(c *TranslatorConfig) { c.WeightSteps = 1 }},
		{name: "unknown-type", mutate: func(c *TranslatorConfig) { c.GateTypes = []GateType{7} }},
		{name: "duplicate-type", mutate: func(c *TranslatorConfig) { c.GateTypes = []GateType{Logic, Logic} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultTranslatorConfig()
			tc.mutate(&cfg)
			if _, err := NewTranslator(cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}

	cfg := DefaultTranslatorConfig()
	cfg.InputLimit = 70
	if _, err := NewTranslator(cfg); !errors.Is(err, ErrInvalidTranslator) {
		t.Fatalf("expected ErrInvalidTranslator, got %v", err)
	}
	cfg.InputLimit, cfg.OutputLimit = MaxGateBits-1, 3
	if _, err := NewTranslator(cfg); err != nil {
		t.Fatalf("widest input range rejected: %v", err)
	}

	cfg = DefaultTranslatorConfig()
	cfg.GateTypes = []GateType{9}
	if _, err := NewTranslator(cfg); !errors.Is(err, ErrUnknownGateType) {
		t.Fatalf("expected ErrUnknownGateType, got %v", err)
	}
}

func TestParseGateType(t *testing.T) {
	for name, want := range map[string]GateType{"logic": Logic, "probabilistic": Probabilistic, "markov": Probabilistic, "adaptive": Adaptive} {
		got, err := ParseGateType(name)
		if err != nil || got != want {
			t.Fatalf("parse %s: got=%v err=%v want=%v", name, got, err, want)
		}
	}
	if _, err := ParseGateType("quantum"); !errors.Is(err, ErrUnknownGateType) {
		t.Fatalf("expected ErrUnknownGateType, got %v", err)
	}
}

func TestTranslateParsesLogicGateBody(t *testing.T) {
	net := mustNetwork(t, Geometry{Inputs: 2, Outputs: 2, Hidden: 1}, 1)
	// Indices 7 and 8 wrap modulo the five states.
	g := genome.Genome{42, 213, 1, 0, 7, 8, 3, 0, 1, 2, 3}
	mustTranslator(t, DefaultTranslatorConfig()).Translate(g, net)
	if net.NumGates() != 1 {
		t.Fatalf("unexpected gate count: %d", net.NumGates())
	}
	gate, ok := net.Gate(0).(*LogicGate)
	if !ok {
		t.Fatalf("unexpected gate type: %T", net.Gate(0))
	}
	assertOutputs(t, gate.Inputs(), []int{2, 3})
	assertOutputs(t, gate.Outputs(), []int{3})
	assertOutputs(t, gate.Table, []int{0, 1, 2, 3})
}

func TestTranslateSkipsDisabledGateTypes(t *testing.T) {
	cfg := DefaultTranslatorConfig()
	cfg.GateTypes = []GateType{Logic}
	net := mustNetwork(t, Geometry{Inputs: 2, Outputs: 2, Hidden: 1}, 1)
	mustTranslator(t, cfg).Translate(echoGenome(Probabilistic), net)
	if net.NumGates() != 0 {
		t.Fatalf("disabled gate type was translated: %d gates", net.NumGates())
	}

	mustTranslator(t, cfg).Translate(echoGenome(Logic), net)
	if net.NumGates() != 1 {
		t.Fatalf("enabled gate type was skipped: %d gates", net.NumGates())
	}
}

func TestTranslateIgnoresNonGateCodons(t *testing.T) {
	// 100+155 is a start codon, but 100 names no gate type.
	net := mustNetwork(t, Geometry{Inputs: 2, Outputs: 2}, 1)
	mustTranslator(t, DefaultTranslatorConfig()).Translate(genome.Genome{100, 155, 1, 1, 0, 1, 2, 3}, net)
	if net.NumGates() != 0 {
		t.Fatalf("junk codon produced %d gates", net.NumGates())
	}
}

func TestTranslateReadsOverlappingGenes(t *testing.T) {
	// The second codon sits inside the first gene's body. Both genes are read;
	// the scanner does not skip past a consumed body.
	g := make(genome.Genome, 40)
	g[0], g[1] = 42, 213
	g[2], g[3] = 42, 213
	net := mustNetwork(t, Geometry{Inputs: 2, Outputs: 2, Hidden: 2}, 1)
	mustTranslator(t, DefaultTranslatorConfig()).Translate(g, net)
	if net.NumGates() != 2 {
		t.Fatalf("expected two overlapping gates, got %d", net.NumGates())
	}
	first := net.Gate(0).(*LogicGate)
	// The first gene reads the second codon's values as its arities.
	if len(first.Inputs()) != modnorm(42, 1, 5) || len(first.Outputs()) != modnorm(213, 1, 5) {
		t.Fatalf("unexpected overlapping arities: in=%v out=%v", first.Inputs(), first.Outputs())
	}
}

func TestTranslateGeneStraddlingGenomeEnd(t *testing.T) {
	// The codon occupies the last two positions; the body wraps to the front.
	g := genome.Genome{1, 1, 0, 1, 2, 3, 0, 1, 2, 3, 42, 213}
	net := mustNetwork(t, Geometry{Inputs: 2, Outputs: 2, Hidden: 1}, 1)
	mustTranslator(t, DefaultTranslatorConfig()).Translate(g, net)
	if net.NumGates() != 1 {
		t.Fatalf("unexpected gate count: %d", net.NumGates())
	}
	for _, in := range [][]int{{0, 1}, {1, 0}, {1, 1}} {
		net.Update(in, 1)
		assertOutputs(t, net.Outputs(), in)
	}
}

func TestTranslateProbabilisticZeroRowFallsBackToUniform(t *testing.T) {
	g := genome.Genome{43, 212, 0, 0, 0, 1, 0, 0, 3, 1}
	net := mustNetwork(t, Geometry{Inputs: 1, Outputs: 1}, 1)
	mustTranslator(t, DefaultTranslatorConfig()).Translate(g, net)
	gate := net.Gate(0).(*ProbabilisticGate)
	if gate.Matrix[0][0] != 0.5 || gate.Matrix[0][1] != 0.5 {
		t.Fatalf("zero row not uniform: %v", gate.Matrix[0])
	}
	if math.Abs(gate.Matrix[1][0]-0.75) > 1e-12 || math.Abs(gate.Matrix[1][1]-0.25) > 1e-12 {
		t.Fatalf("row not normalized: %v", gate.Matrix[1])
	}
}

func TestTranslateAdaptiveGateBody(t *testing.T) {
	g := genome.Genome{
		44, 211,
		0, 0, // one input, one output
		2, 3, // input index, output index
		1,    // history length 2
		0, 1, // reinforce, inhibit
		4, 2, // positive weights -> 1, 0.5
		1, 9, // negative weights -> -0.25, -1
		1, 1, 2, 0, // matrix
	}
	net := mustNetwork(t, Geometry{Inputs: 3, Outputs: 1}, 1)
	mustTranslator(t, DefaultTranslatorConfig()).Translate(g, net)
	if net.NumGates() != 1 {
		t.Fatalf("unexpected gate count: %d", net.NumGates())
	}
	gate, ok := net.Gate(0).(*AdaptiveGate)
	if !ok {
		t.Fatalf("unexpected gate type: %T", net.Gate(0))
	}
	if gate.Reinforce() != 0 || gate.Inhibit() != 1 {
		t.Fatalf("unexpected feedback wiring: %v", gate.Inputs())
	}
	assertOutputs(t, gate.SignalInputs(), []int{2})
	assertOutputs(t, gate.Outputs(), []int{3})
	if gate.HistorySize() != 2 {
		t.Fatalf("unexpected history size: %d", gate.HistorySize())
	}
	wantPos := []float64{1, 0.5}
	wantNeg := []float64{-0.25, -1}
	for i := range wantPos {
		if gate.PositiveWeights[i] != wantPos[i] || gate.NegativeWeights[i] != wantNeg[i] {
			t.Fatalf("unexpected weights: pos=%v neg=%v", gate.PositiveWeights, gate.NegativeWeights)
		}
	}
	if gate.Matrix[1][0] != 1 || gate.Matrix[1][1] != 0 {
		t.Fatalf("unexpected matrix: %v", gate.Matrix)
	}
}

func TestTranslateRandomGenomesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := mustTranslator(t, DefaultTranslatorConfig())
	for trial := 0; trial < 200; trial++ {
		geom := Geometry{Inputs: rng.Intn(6), Outputs: rng.Intn(6), Hidden: rng.Intn(10) + 1}
		g := make(genome.Genome, 2+rng.Intn(400))
		for i := range g {
			g[i] = rng.Intn(256)
		}
		// Seed a few codons so every variant is exercised.
		for k := 0; k < 4; k++ {
			j := rng.Intn(len(g))
			kind := 42 + rng.Intn(3)
			g[j], g[(j+1)%len(g)] = kind, 255-kind
		}

		net := mustNetwork(t, geom, int64(trial))
		tr.Translate(g, net)
		for gi, gate := range net.Gates() {
			for _, idx := range append(append([]int(nil), gate.Inputs()...), gate.Outputs()...) {
				if idx < 0 || idx >= geom.Size() {
					t.Fatalf("trial %d gate %d index out of range: %d size=%d", trial, gi, idx, geom.Size())
				}
			}
			var m Matrix
			switch v := gate.(type) {
			case *ProbabilisticGate:
				m = v.Matrix
			case *AdaptiveGate:
				m = v.Matrix
			}
			for r, sum := range m.RowSums() {
				if math.Abs(sum-1) > 1e-9 {
					t.Fatalf("trial %d gate %d row %d sums to %f", trial, gi, r, sum)
				}
			}
		}
		in := make([]int, geom.Inputs)
		for step := 0; step < 5; step++ {
			for i := range in {
				in[i] = rng.Intn(2)
			}
			net.Update(in, 1)
		}
	}
}

func TestTranslateToleratesTinyAndNegativeGenomes(t *testing.T) {
	tr := mustTranslator(t, DefaultTranslatorConfig())
	net := mustNetwork(t, Geometry{Inputs: 1, Outputs: 1}, 1)
	tr.Translate(nil, net)
	tr.Translate(genome.Genome{42}, net)
	tr.Translate(genome.Genome{42, 213}, net)
	tr.Translate(genome.Genome{42, 213, -3, -7, -1, -2, -5, -9}, net)
	for _, gate := range net.Gates() {
		for _, idx := range gate.Inputs() {
			if idx < 0 || idx >= net.Size() {
				t.Fatalf("index out of range: %d", idx)
			}
		}
	}
}
