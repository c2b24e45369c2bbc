package evo

import (
	"errors"
	"fmt"

	"gatenet/internal/genome"
	"gatenet/internal/markov"
	"gatenet/internal/model"
	"gatenet/internal/scape"
)

// PhenotypeBuilder turns a genome into a runnable phenotype seeded with seed.
type PhenotypeBuilder interface {
	Build(g model.Genome, seed int64) (scape.Phenotype, error)
}

// NetworkBuilder translates genomes into a single network, or into a
// cascading deep network when more than one layer is configured.
type NetworkBuilder struct {
	Translator *markov.Translator
	Layers     []markov.Geometry
	Options    []markov.Option
}

func NewNetworkBuilder(tr *markov.Translator, layers []markov.Geometry, opts ...markov.Option) (*NetworkBuilder, error) {
	if tr == nil {
		return nil, errors.New("translator is required")
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: at least one layer is required", markov.ErrInvalidGeometry)
	}
	for i, geom := range layers {
		if err := geom.Validate(); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if i > 0 && layers[i-1].Outputs != geom.Inputs {
			return nil, fmt.Errorf("%w: layer %d has %d outputs, layer %d takes %d inputs",
				markov.ErrInvalidGeometry, i-1, layers[i-1].Outputs, i, geom.Inputs)
		}
	}
	return &NetworkBuilder{Translator: tr, Layers: append([]markov.Geometry(nil), layers...), Options: opts}, nil
}

// Inputs is the width of the input slice the built phenotype consumes.
func (b *NetworkBuilder) Inputs() int { return b.Layers[0].Inputs }

// Outputs is the width of the built phenotype's output region.
func (b *NetworkBuilder) Outputs() int { return b.Layers[len(b.Layers)-1].Outputs }

func (b *NetworkBuilder) Build(g model.Genome, seed int64) (scape.Phenotype, error) {
	if len(b.Layers) == 1 {
		net, err := b.BuildNetwork(g, seed)
		if err != nil {
			return nil, err
		}
		return net, nil
	}
	deep, err := b.BuildDeep(g, seed)
	if err != nil {
		return nil, err
	}
	return deep, nil
}

func (b *NetworkBuilder) BuildNetwork(g model.Genome, seed int64) (*markov.Network, error) {
	net, err := markov.NewNetwork(b.Layers[0], seed, b.Options...)
	if err != nil {
		return nil, err
	}
	b.Translator.Translate(genome.Genome(g.Values), net)
	return net, nil
}

func (b *NetworkBuilder) BuildDeep(g model.Genome, seed int64) (*markov.DeepNetwork, error) {
	deep, err := markov.NewDeepNetwork(b.Layers, seed, b.Options...)
	if err != nil {
		return nil, err
	}
	b.Translator.TranslateDeep(genome.Genome(g.Values), deep)
	return deep, nil
}

// CheckShape reports whether phenotypes from b fit the widths a scape drives.
func (b *NetworkBuilder) CheckShape(s scape.Scape) error {
	shaped, ok := s.(scape.Shaped)
	if !ok {
		return nil
	}
	in, out := shaped.Dimensions()
	if b.Inputs() != in || b.Outputs() < out {
		return fmt.Errorf("%w: scape %s needs %d inputs and %d outputs, network has %d and %d",
			markov.ErrInvalidGeometry, s.Name(), in, out, b.Inputs(), b.Outputs())
	}
	return nil
}
