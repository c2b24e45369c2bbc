package evo

import (
	"math/rand"
	"testing"

	"gatenet/internal/model"
)

func TestGenomeSignature(t *testing.T) {
	a := model.Genome{ID: "a", Values: []int{42, 213, 1, 2, 43, 212, 7}}
	b := model.Genome{ID: "b", Values: []int{42, 213, 1, 2, 43, 212, 7}}
	c := model.Genome{ID: "c", Values: []int{42, 213, 1, 2, 43, 212, 8}}

	sa, sb, sc := ComputeGenomeSignature(a), ComputeGenomeSignature(b), ComputeGenomeSignature(c)
	if sa.Fingerprint != sb.Fingerprint {
		t.Fatal("expected identical values to share a fingerprint")
	}
	if sa.Fingerprint == sc.Fingerprint {
		t.Fatal("expected different values to differ in fingerprint")
	}
	if sa.Length != 7 || sa.Codons != 2 {
		t.Fatalf("unexpected summary: %+v", sa)
	}
}

func TestCountCodons(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{name: "empty", values: nil, want: 0},
		{name: "single", values: []int{42}, want: 0},
		{name: "non-gate-codon", values: []int{100, 155, 0}, want: 0},
		{name: "wrapping", values: []int{213, 5, 5, 42}, want: 1},
		{name: "adjacent", values: []int{44, 211, 44, 211}, want: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CountCodons(tc.values); got != tc.want {
				t.Fatalf("got=%d want=%d", got, tc.want)
			}
		})
	}
}

func TestMutationCountPolicies(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if n, err := (ConstMutationCount{Count: 3}).MutationCount(model.Genome{}, 0, rng); err != nil || n != 3 {
		t.Fatalf("const count: got=%d err=%v", n, err)
	}
	if _, err := (ConstMutationCount{}).MutationCount(model.Genome{}, 0, rng); err == nil {
		t.Fatal("expected const count error")
	}

	g := model.Genome{Values: []int{42, 213, 43, 212, 44, 211, 42, 213}}
	if n, err := (CodonScaledMutationCount{Multiplier: 0.5}).MutationCount(g, 0, rng); err != nil || n != 2 {
		t.Fatalf("codon scaled count: got=%d err=%v", n, err)
	}
	if n, _ := (CodonScaledMutationCount{Multiplier: 10, MaxCount: 5}).MutationCount(g, 0, rng); n != 5 {
		t.Fatalf("expected capped count, got %d", n)
	}
	if n, _ := (CodonScaledMutationCount{Multiplier: 0.1}).MutationCount(model.Genome{}, 0, rng); n != 1 {
		t.Fatalf("expected floor of one mutation, got %d", n)
	}
}
