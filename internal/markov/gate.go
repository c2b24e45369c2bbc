package markov

import (
	"fmt"
	"math/rand"
)

// GateType identifies a gate variant. Its value doubles as the first value of
// the start codon that introduces the gate in a genome.
type GateType int

const (
	Logic         GateType = 42
	Probabilistic GateType = 43
	Adaptive      GateType = 44
)

func (t GateType) String() string {
	switch t {
	case Logic:
		return "logic"
	case Probabilistic:
		return "probabilistic"
	case Adaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("gate_type(%d)", int(t))
	}
}

// AllGateTypes lists every supported gate type in codon order.
func AllGateTypes() []GateType {
	return []GateType{Logic, Probabilistic, Adaptive}
}

// ParseGateType resolves a gate type from its name.
func ParseGateType(name string) (GateType, error) {
	switch name {
	case "logic", "deterministic":
		return Logic, nil
	case "probabilistic", "markov":
		return Probabilistic, nil
	case "adaptive":
		return Adaptive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownGateType, name)
	}
}

// Gate is implemented by exactly LogicGate, ProbabilisticGate and AdaptiveGate.
type Gate interface {
	Kind() GateType
	// Inputs are the state indices read into bits 0..n-1 of the input code.
	Inputs() []int
	// Outputs are the state indices that bits 0..n-1 of the output code go to.
	Outputs() []int
	Clone() Gate

	update(input int, rng *rand.Rand, adapt bool) int
	reset()
}

type wiring struct {
	in  []int
	out []int
}

func (w *wiring) Inputs() []int  { return w.in }
func (w *wiring) Outputs() []int { return w.out }

func (w wiring) clone() wiring {
	return wiring{
		in:  append([]int(nil), w.in...),
		out: append([]int(nil), w.out...),
	}
}

// LogicGate maps every input code to an output code through a truth table.
type LogicGate struct {
	wiring
	Table []int
}

func NewLogicGate(inputs, outputs, table []int) *LogicGate {
	return &LogicGate{wiring: wiring{in: inputs, out: outputs}, Table: table}
}

func (g *LogicGate) Kind() GateType { return Logic }

func (g *LogicGate) Clone() Gate {
	return &LogicGate{wiring: g.wiring.clone(), Table: append([]int(nil), g.Table...)}
}

func (g *LogicGate) update(input int, _ *rand.Rand, _ bool) int {
	return g.Table[input]
}

func (g *LogicGate) reset() {}

// ProbabilisticGate draws its output code from the row of a row-stochastic
// matrix selected by the input code.
type ProbabilisticGate struct {
	wiring
	Matrix Matrix
}

func NewProbabilisticGate(inputs, outputs []int, m Matrix) *ProbabilisticGate {
	return &ProbabilisticGate{wiring: wiring{in: inputs, out: outputs}, Matrix: m}
}

func (g *ProbabilisticGate) Kind() GateType { return Probabilistic }

func (g *ProbabilisticGate) Clone() Gate {
	return &ProbabilisticGate{wiring: g.wiring.clone(), Matrix: g.Matrix.Clone()}
}

func (g *ProbabilisticGate) update(input int, rng *rand.Rand, _ bool) int {
	return g.Matrix.Sample(input, rng)
}

func (g *ProbabilisticGate) reset() {}

// Decision is one (input code, output code) pair taken by an adaptive gate.
type Decision struct {
	Input  int
	Output int
}

// AdaptiveGate is a probabilistic gate whose matrix is reinforced or inhibited
// by two feedback bits. Its first two input indices are the reinforce and
// inhibit sources; the matrix is indexed by the remaining inputs.
type AdaptiveGate struct {
	wiring
	Matrix          Matrix
	PositiveWeights []float64
	NegativeWeights []float64
	History         []Decision
}

// NewAdaptiveGate wires reinforce and inhibit ahead of the regular inputs.
// Both weight vectors must have the same length, which bounds the history.
func NewAdaptiveGate(reinforce, inhibit int, inputs, outputs []int, m Matrix, positive, negative []float64) *AdaptiveGate {
	in := make([]int, 0, len(inputs)+2)
	in = append(in, reinforce, inhibit)
	in = append(in, inputs...)
	return &AdaptiveGate{
		wiring:          wiring{in: in, out: outputs},
		Matrix:          m,
		PositiveWeights: positive,
		NegativeWeights: negative,
	}
}

func (g *AdaptiveGate) Kind() GateType { return Adaptive }

func (g *AdaptiveGate) Reinforce() int { return g.in[0] }
func (g *AdaptiveGate) Inhibit() int   { return g.in[1] }

// SignalInputs returns the input indices that address matrix rows.
func (g *AdaptiveGate) SignalInputs() []int { return g.in[2:] }

func (g *AdaptiveGate) HistorySize() int { return len(g.PositiveWeights) }

func (g *AdaptiveGate) Clone() Gate {
	return &AdaptiveGate{
		wiring:          g.wiring.clone(),
		Matrix:          g.Matrix.Clone(),
		PositiveWeights: append([]float64(nil), g.PositiveWeights...),
		NegativeWeights: append([]float64(nil), g.NegativeWeights...),
		History:         append([]Decision(nil), g.History...),
	}
}

func (g *AdaptiveGate) update(input int, rng *rand.Rand, adapt bool) int {
	if adapt {
		if over := len(g.History) - g.HistorySize(); over > 0 {
			g.History = append(g.History[:0], g.History[over:]...)
		}
		if input&0x01 != 0 {
			g.feedback(g.PositiveWeights)
		}
		if input&0x02 != 0 {
			g.feedback(g.NegativeWeights)
		}
	}

	input >>= 2
	output := g.Matrix.Sample(input, rng)
	if adapt {
		g.History = append(g.History, Decision{Input: input, Output: output})
	}
	return output
}

// feedback scales the probabilities of the most recent decisions, the k-th
// most recent by 1+weights[k].
func (g *AdaptiveGate) feedback(weights []float64) {
	k := 0
	for i := len(g.History) - 1; i >= 0 && k < len(weights); i-- {
		d := g.History[i]
		g.Matrix.Scale(d.Input, d.Output, 1+weights[k])
		k++
	}
}

func (g *AdaptiveGate) reset() {
	g.History = g.History[:0]
}
