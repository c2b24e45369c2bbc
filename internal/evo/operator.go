package evo

import (
	"context"

	"gatenet/internal/model"
)

// Operator produces a mutated copy of a genome. Implementations must not
// modify the genome they are given.
type Operator interface {
	Name() string
	Apply(ctx context.Context, genome model.Genome) (model.Genome, error)
}

// WeightedMutation is one entry of a mutation policy: operators are drawn
// with probability proportional to Weight.
type WeightedMutation struct {
	Operator Operator
	Weight   float64
}
