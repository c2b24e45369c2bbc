package scape

import (
	"context"
	"errors"
	"testing"

	"gatenet/internal/markov"
)

func TestEchoScapeScoresIdentityNetwork(t *testing.T) {
	net, err := markov.NewNetwork(markov.Geometry{Inputs: 2, Outputs: 2}, 1)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	net.AddGate(markov.NewLogicGate([]int{0, 1}, []int{2, 3}, []int{0, 1, 2, 3}))

	fitness, trace, err := EchoScape{Width: 2}.Evaluate(context.Background(), net)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != 1 {
		t.Fatalf("unexpected fitness: got=%f want=1 trace=%+v", fitness, trace)
	}
	if cases, _ := trace["cases"].(int); cases != 4 {
		t.Fatalf("unexpected case count: %+v", trace)
	}
}

func TestEchoScapeScoresSilentPhenotypeByBits(t *testing.T) {
	zeros := &scriptedPhenotype{fn: func(in []int) []int { return make([]int, len(in)) }}
	fitness, _, err := EchoScape{Width: 3}.Evaluate(context.Background(), zeros)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != 0.5 {
		t.Fatalf("unexpected fitness: got=%f want=0.5", fitness)
	}
}

func TestEchoScapeRejectsWidth(t *testing.T) {
	for _, width := range []int{0, maxEchoWidth + 1} {
		if _, _, err := (EchoScape{Width: width}).Evaluate(context.Background(), &scriptedPhenotype{}); err == nil {
			t.Fatalf("expected width error for %d", width)
		}
	}
}

func TestScapeRegistry(t *testing.T) {
	resetScapeRegistryForTests()
	t.Cleanup(resetScapeRegistryForTests)

	got := ListScapes()
	if len(got) != 3 || got[0] != "dtm" || got[1] != "echo" || got[2] != "xor" {
		t.Fatalf("unexpected builtin scapes: %v", got)
	}
	s, err := ResolveScape("xor")
	if err != nil || s.Name() != "xor" {
		t.Fatalf("resolve xor: scape=%v err=%v", s, err)
	}
	if _, err := ResolveScape("missing"); !errors.Is(err, ErrScapeNotFound) {
		t.Fatalf("expected ErrScapeNotFound, got %v", err)
	}
	if err := RegisterScape("xor", func() Scape { return XORScape{} }); !errors.Is(err, ErrScapeExists) {
		t.Fatalf("expected ErrScapeExists, got %v", err)
	}
	if err := RegisterScape("echo4", func() Scape { return EchoScape{Width: 4} }); err != nil {
		t.Fatalf("register echo4: %v", err)
	}
	s, err = ResolveScape("echo4")
	if err != nil {
		t.Fatalf("resolve echo4: %v", err)
	}
	if in, out := s.(Shaped).Dimensions(); in != 4 || out != 4 {
		t.Fatalf("unexpected dimensions: %d/%d", in, out)
	}
}
