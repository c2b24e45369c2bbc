package markov

import (
	"fmt"
	"math/rand"
)

// DeepNetwork is an ordered stack of networks. Each layer owns its random
// source, seeded from a master generator so a single seed reproduces the
// whole stack.
type DeepNetwork struct {
	layers []*Network
}

func NewDeepNetwork(geoms []Geometry, seed int64, opts ...Option) (*DeepNetwork, error) {
	if len(geoms) == 0 {
		return nil, fmt.Errorf("%w: deep network needs at least one layer", ErrInvalidGeometry)
	}
	master := rand.New(rand.NewSource(seed))
	layers := make([]*Network, len(geoms))
	for i, geom := range geoms {
		layer, err := NewNetwork(geom, master.Int63(), opts...)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layers[i] = layer
	}
	return &DeepNetwork{layers: layers}, nil
}

func (d *DeepNetwork) NumLayers() int       { return len(d.layers) }
func (d *DeepNetwork) Layer(i int) *Network { return d.layers[i] }

func (d *DeepNetwork) NumInputs() int {
	total := 0
	for _, l := range d.layers {
		total += l.NumInputs()
	}
	return total
}

func (d *DeepNetwork) NumOutputs() int {
	total := 0
	for _, l := range d.layers {
		total += l.NumOutputs()
	}
	return total
}

func (d *DeepNetwork) NumHidden() int {
	total := 0
	for _, l := range d.layers {
		total += l.NumHidden()
	}
	return total
}

func (d *DeepNetwork) NumGates() int {
	total := 0
	for _, l := range d.layers {
		total += l.NumGates()
	}
	return total
}

// Geometries returns the per-layer geometry in layer order.
func (d *DeepNetwork) Geometries() []Geometry {
	geoms := make([]Geometry, len(d.layers))
	for i, l := range d.layers {
		geoms[i] = l.Geometry()
	}
	return geoms
}

// ValidateCascade checks that every layer takes exactly as many inputs as its
// predecessor produces.
func (d *DeepNetwork) ValidateCascade() error {
	for i := 1; i < len(d.layers); i++ {
		prev, cur := d.layers[i-1], d.layers[i]
		if prev.NumOutputs() != cur.NumInputs() {
			return fmt.Errorf("%w: layer %d has %d outputs, layer %d takes %d inputs",
				ErrInvalidGeometry, i-1, prev.NumOutputs(), i, cur.NumInputs())
		}
	}
	return nil
}

// Update runs the stack as a cascade: per step, layer 0 reads inputs and each
// later layer reads the outputs its predecessor produced in that same step.
func (d *DeepNetwork) Update(inputs []int, steps int) {
	if steps < 0 {
		panic(fmt.Sprintf("markov: negative update count %d", steps))
	}
	for ; steps > 0; steps-- {
		d.layers[0].Update(inputs, 1)
		for i := 1; i < len(d.layers); i++ {
			d.layers[i].Update(d.layers[i-1].Outputs(), 1)
		}
	}
}

// UpdateParallel advances every layer from its own input slice; no layer sees
// another layer's output from the same step.
func (d *DeepNetwork) UpdateParallel(inputs [][]int, steps int) {
	if len(inputs) != len(d.layers) {
		panic(fmt.Sprintf("markov: parallel update with %d input sets, network has %d layers", len(inputs), len(d.layers)))
	}
	if steps < 0 {
		panic(fmt.Sprintf("markov: negative update count %d", steps))
	}
	for ; steps > 0; steps-- {
		for i, l := range d.layers {
			l.Update(inputs[i], 1)
		}
	}
}

// Outputs returns the outputs of the last layer.
func (d *DeepNetwork) Outputs() []int {
	return d.layers[len(d.layers)-1].Outputs()
}

func (d *DeepNetwork) Clear() {
	for _, l := range d.layers {
		l.Clear()
	}
}

// Reset reseeds every layer from a new master seed and clears all state.
func (d *DeepNetwork) Reset(seed int64) {
	master := rand.New(rand.NewSource(seed))
	for _, l := range d.layers {
		l.Reset(master.Int63())
	}
}

func (d *DeepNetwork) SetAdaptation(enabled bool) {
	for _, l := range d.layers {
		l.SetAdaptation(enabled)
	}
}
