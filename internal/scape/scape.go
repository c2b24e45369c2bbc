package scape

import "context"

type Fitness float64

type Trace map[string]any

// Phenotype is an executable network. *markov.Network and
// *markov.DeepNetwork both satisfy it.
type Phenotype interface {
	Update(inputs []int, steps int)
	Outputs() []int
	Clear()
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, phenotype Phenotype) (Fitness, Trace, error)
}

// ModeAwareScape optionally exposes evaluation mode routing for gt/validation/test flows.
type ModeAwareScape interface {
	Scape
	EvaluateMode(ctx context.Context, phenotype Phenotype, mode string) (Fitness, Trace, error)
}

// Shaped reports the input and output widths a scape drives and reads.
// Phenotypes must be built with exactly Inputs input states.
type Shaped interface {
	Dimensions() (inputs, outputs int)
}
