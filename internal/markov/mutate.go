package markov

import (
	"errors"
	"fmt"
	"math/rand"
)

// GateMutator mutates a network directly, for representations where the
// network itself rather than a genome is the unit of heredity.
type GateMutator struct {
	// Rate is the per-site probability of perturbing an index, table entry
	// or matrix cell.
	Rate          float64
	DuplicateRate float64
	DeleteRate    float64
	MinGates      int
	MaxGates      int
	// ValueMax bounds replacement truth-table entries and raw matrix weights.
	ValueMax int
}

func (m GateMutator) Validate() error {
	rates := []struct {
		name string
		v    float64
	}{
		{"rate", m.Rate},
		{"duplicate rate", m.DuplicateRate},
		{"delete rate", m.DeleteRate},
	}
	for _, r := range rates {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("gate mutator %s must be in [0,1], got %f", r.name, r.v)
		}
	}
	if m.MinGates < 0 || m.MaxGates < m.MinGates {
		return fmt.Errorf("gate mutator bounds invalid: min=%d max=%d", m.MinGates, m.MaxGates)
	}
	if m.ValueMax <= 0 {
		return errors.New("gate mutator value max must be > 0")
	}
	return nil
}

// Mutate duplicates and deletes whole gates within [MinGates, MaxGates] and
// then perturbs every gate per site. Perturbed indices stay inside the state
// vector and perturbed matrix rows stay normalized.
func (m GateMutator) Mutate(net *Network, rng *rand.Rand) error {
	if rng == nil {
		return errors.New("random source is required")
	}
	if err := m.Validate(); err != nil {
		return err
	}

	gates := append([]Gate(nil), net.Gates()...)
	if len(gates) > 0 && len(gates) < m.MaxGates && rng.Float64() < m.DuplicateRate {
		gates = append(gates, gates[rng.Intn(len(gates))].Clone())
	}
	if len(gates) > m.MinGates && rng.Float64() < m.DeleteRate {
		i := rng.Intn(len(gates))
		gates = append(gates[:i], gates[i+1:]...)
	}

	states := net.Size()
	for _, g := range gates {
		m.perturbIndices(g.Inputs(), states, rng)
		m.perturbIndices(g.Outputs(), states, rng)
		switch gate := g.(type) {
		case *LogicGate:
			for i := range gate.Table {
				if rng.Float64() < m.Rate {
					gate.Table[i] = rng.Intn(m.ValueMax + 1)
				}
			}
		case *ProbabilisticGate:
			m.perturbMatrix(gate.Matrix, rng)
		case *AdaptiveGate:
			m.perturbMatrix(gate.Matrix, rng)
		}
	}
	net.SetGates(gates)
	return nil
}

func (m GateMutator) perturbIndices(idx []int, states int, rng *rand.Rand) {
	for i := range idx {
		if rng.Float64() < m.Rate {
			idx[i] = rng.Intn(states)
		}
	}
}

func (m GateMutator) perturbMatrix(mat Matrix, rng *rand.Rand) {
	for i, row := range mat {
		touched := false
		for j := range row {
			if rng.Float64() < m.Rate {
				row[j] = float64(rng.Intn(m.ValueMax+1)) / float64(m.ValueMax)
				touched = true
			}
		}
		if touched {
			mat.Normalize(i)
		}
	}
}
