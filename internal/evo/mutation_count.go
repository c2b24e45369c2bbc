package evo

import (
	"fmt"
	"math"
	"math/rand"

	"gatenet/internal/model"
)

// MutationCountPolicy determines how many operator applications each
// offspring receives.
type MutationCountPolicy interface {
	Name() string
	MutationCount(genome model.Genome, generation int, rng *rand.Rand) (int, error)
}

type ConstMutationCount struct {
	Count int
}

func (ConstMutationCount) Name() string {
	return "const"
}

func (p ConstMutationCount) MutationCount(_ model.Genome, _ int, _ *rand.Rand) (int, error) {
	if p.Count <= 0 {
		return 0, fmt.Errorf("const mutation count must be > 0")
	}
	return p.Count, nil
}

// CodonScaledMutationCount grows the number of applications with the number
// of genes a genome carries.
type CodonScaledMutationCount struct {
	Multiplier float64
	MaxCount   int
}

func (CodonScaledMutationCount) Name() string {
	return "codon_scaled"
}

func (p CodonScaledMutationCount) MutationCount(g model.Genome, _ int, _ *rand.Rand) (int, error) {
	if p.Multiplier <= 0 {
		return 0, fmt.Errorf("codon multiplier must be > 0")
	}
	count := int(math.Round(float64(CountCodons(g.Values)) * p.Multiplier))
	count = max(count, 1)
	if p.MaxCount > 0 && count > p.MaxCount {
		count = p.MaxCount
	}
	return count, nil
}
