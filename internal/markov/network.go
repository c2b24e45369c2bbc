package markov

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrUnknownGateType   = errors.New("unknown gate type")
	ErrInvalidGeometry   = errors.New("invalid network geometry")
	ErrInvalidTranslator = errors.New("invalid translator config")
)

// Geometry sizes the three regions of a network's state vector.
type Geometry struct {
	Inputs  int `json:"inputs"`
	Outputs int `json:"outputs"`
	Hidden  int `json:"hidden"`
}

func (g Geometry) Size() int {
	return g.Inputs + g.Outputs + g.Hidden
}

func (g Geometry) Validate() error {
	if g.Inputs < 0 || g.Outputs < 0 || g.Hidden < 0 {
		return fmt.Errorf("%w: negative region in %+v", ErrInvalidGeometry, g)
	}
	if g.Size() == 0 {
		return fmt.Errorf("%w: empty state vector", ErrInvalidGeometry)
	}
	return nil
}

// BinaryFunc combines a bit into an accumulated state value.
type BinaryFunc func(acc, bit int) int

func BinaryOr(acc, bit int) int  { return acc | bit }
func BinaryXor(acc, bit int) int { return acc ^ bit }

// ParseBinaryFunc resolves an update function by name.
func ParseBinaryFunc(name string) (BinaryFunc, error) {
	switch name {
	case "", "or":
		return BinaryOr, nil
	case "xor":
		return BinaryXor, nil
	default:
		return nil, fmt.Errorf("unsupported update function: %s", name)
	}
}

type Option func(*options)

type options struct {
	combine BinaryFunc
	adapt   bool
}

func defaultOptions() options {
	return options{combine: BinaryOr, adapt: true}
}

// WithBinaryFunc sets how bits are folded into input codes and next-state
// values. The default is OR.
func WithBinaryFunc(fn BinaryFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.combine = fn
		}
	}
}

// WithAdaptation enables or disables learning in adaptive gates.
func WithAdaptation(enabled bool) Option {
	return func(o *options) {
		o.adapt = enabled
	}
}

// Network is a Markov network: an ordered list of gates over a double
// buffered state vector laid out as [inputs | outputs | hidden].
type Network struct {
	geom  Geometry
	gates []Gate
	t     []int
	tp1   []int
	in    []int
	rng   *rand.Rand
	opts  options
}

func NewNetwork(geom Geometry, seed int64, opts ...Option) (*Network, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Network{
		geom: geom,
		t:    make([]int, geom.Size()),
		tp1:  make([]int, geom.Size()),
		in:   make([]int, geom.Inputs),
		rng:  rand.New(rand.NewSource(seed)),
		opts: o,
	}, nil
}

func (n *Network) Geometry() Geometry { return n.geom }
func (n *Network) NumInputs() int     { return n.geom.Inputs }
func (n *Network) NumOutputs() int    { return n.geom.Outputs }
func (n *Network) NumHidden() int     { return n.geom.Hidden }
func (n *Network) Size() int          { return n.geom.Size() }
func (n *Network) NumGates() int      { return len(n.gates) }
func (n *Network) Gate(i int) Gate    { return n.gates[i] }

// Gates returns the gates in evaluation order. The slice is owned by the
// network.
func (n *Network) Gates() []Gate { return n.gates }

// State returns the current state vector.
func (n *Network) State() []int { return n.t }

func (n *Network) Inputs() []int {
	return n.t[:n.geom.Inputs]
}

func (n *Network) Outputs() []int {
	return n.t[n.geom.Inputs : n.geom.Inputs+n.geom.Outputs]
}

func (n *Network) Hidden() []int {
	return n.t[n.geom.Inputs+n.geom.Outputs:]
}

// Adaptation reports whether adaptive gates learn during updates.
func (n *Network) Adaptation() bool { return n.opts.adapt }

// SetAdaptation freezes or unfreezes adaptive gates without changing them.
func (n *Network) SetAdaptation(enabled bool) { n.opts.adapt = enabled }

// AddGate appends g. Its indices must already lie inside the state vector.
func (n *Network) AddGate(g Gate) {
	for _, idx := range g.Inputs() {
		n.checkIndex(idx)
	}
	for _, idx := range g.Outputs() {
		n.checkIndex(idx)
	}
	n.gates = append(n.gates, g)
}

// SetGates replaces the gate list.
func (n *Network) SetGates(gates []Gate) {
	n.gates = n.gates[:0]
	for _, g := range gates {
		n.AddGate(g)
	}
}

func (n *Network) checkIndex(idx int) {
	if idx < 0 || idx >= n.Size() {
		panic(fmt.Sprintf("markov: state index %d out of range [0,%d)", idx, n.Size()))
	}
}

// Clear zeroes both state vectors and forgets adaptive histories.
func (n *Network) Clear() {
	clear(n.t)
	clear(n.tp1)
	for _, g := range n.gates {
		g.reset()
	}
}

// Reset reseeds the random source and clears the network.
func (n *Network) Reset(seed int64) {
	n.rng.Seed(seed)
	n.Clear()
}

// Resize changes the geometry. Existing gates are dropped because their
// indices are no longer meaningful; the caller retranslates afterwards.
func (n *Network) Resize(geom Geometry) error {
	if err := geom.Validate(); err != nil {
		return err
	}
	n.geom = geom
	n.gates = nil
	n.t = make([]int, geom.Size())
	n.tp1 = make([]int, geom.Size())
	n.in = make([]int, geom.Inputs)
	return nil
}

// Update copies inputs into the input region and advances every gate steps
// times. The inputs are captured once, so passing a view of this network's
// own state is safe. It panics if len(inputs) differs from the number of
// inputs.
func (n *Network) Update(inputs []int, steps int) {
	if len(inputs) != n.geom.Inputs {
		panic(fmt.Sprintf("markov: update with %d inputs, network has %d", len(inputs), n.geom.Inputs))
	}
	if steps < 0 {
		panic(fmt.Sprintf("markov: negative update count %d", steps))
	}
	copy(n.in, inputs)
	for ; steps > 0; steps-- {
		copy(n.t[:n.geom.Inputs], n.in)
		n.step()
	}
}

// UpdateSelf advances the network without fresh inputs, re-reading whatever
// the input region currently holds.
func (n *Network) UpdateSelf(steps int) {
	if steps < 0 {
		panic(fmt.Sprintf("markov: negative update count %d", steps))
	}
	for ; steps > 0; steps-- {
		n.step()
	}
}

func (n *Network) step() {
	combine := n.opts.combine
	for _, g := range n.gates {
		input := 0
		for j, idx := range g.Inputs() {
			input = combine(input, bit(n.t[idx])<<j)
		}
		output := g.update(input, n.rng, n.opts.adapt)
		for k, idx := range g.Outputs() {
			n.tp1[idx] = combine(n.tp1[idx], (output>>k)&0x01)
		}
	}
	n.t, n.tp1 = n.tp1, n.t
	clear(n.tp1)
}

func bit(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}
