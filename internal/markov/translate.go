package markov

import (
	"fmt"

	"gatenet/internal/genome"
)

// MaxGateBits bounds the widest gene a translator may read: the raw input code
// of an adaptive gate (signal inputs plus its two feedback bits), and the
// input plus output bits that size a probabilistic or adaptive matrix.
const MaxGateBits = 16

// TranslatorConfig bounds the arities read from a gene. Every Floor/Limit pair
// describes the half-open range [Floor, Limit).
type TranslatorConfig struct {
	InputFloor   int
	InputLimit   int
	OutputFloor  int
	OutputLimit  int
	HistoryFloor int
	HistoryLimit int
	// WeightSteps quantizes adaptive feedback weights into WeightSteps levels.
	WeightSteps int
	// GateTypes lists the enabled gate types; codons of other types are junk.
	GateTypes []GateType
}

func DefaultTranslatorConfig() TranslatorConfig {
	return TranslatorConfig{
		InputFloor:   1,
		InputLimit:   5,
		OutputFloor:  1,
		OutputLimit:  5,
		HistoryFloor: 1,
		HistoryLimit: 5,
		WeightSteps:  5,
		GateTypes:    AllGateTypes(),
	}
}

func (c TranslatorConfig) Validate() error {
	ranges := []struct {
		name         string
		floor, limit int
	}{
		{"input", c.InputFloor, c.InputLimit},
		{"output", c.OutputFloor, c.OutputLimit},
		{"history", c.HistoryFloor, c.HistoryLimit},
	}
	for _, r := range ranges {
		if r.floor < 1 {
			return fmt.Errorf("%w: %s floor must be >= 1, got %d", ErrInvalidTranslator, r.name, r.floor)
		}
		if r.limit <= r.floor {
			return fmt.Errorf("%w: %s limit %d must exceed floor %d", ErrInvalidTranslator, r.name, r.limit, r.floor)
		}
	}
	maxIn, maxOut := c.InputLimit-1, c.OutputLimit-1
	if maxIn+2 > MaxGateBits {
		return fmt.Errorf("%w: input limit %d exceeds %d input bits with feedback", ErrInvalidTranslator, c.InputLimit, MaxGateBits)
	}
	if maxIn+maxOut > MaxGateBits {
		return fmt.Errorf("%w: input limit %d and output limit %d exceed %d matrix bits", ErrInvalidTranslator, c.InputLimit, c.OutputLimit, MaxGateBits)
	}
	if c.WeightSteps < 2 {
		return fmt.Errorf("%w: weight steps must be >= 2, got %d", ErrInvalidTranslator, c.WeightSteps)
	}
	seen := make(map[GateType]bool, len(c.GateTypes))
	for _, t := range c.GateTypes {
		switch t {
		case Logic, Probabilistic, Adaptive:
		default:
			return fmt.Errorf("%w: %d", ErrUnknownGateType, int(t))
		}
		if seen[t] {
			return fmt.Errorf("%w: gate type %s enabled twice", ErrInvalidTranslator, t)
		}
		seen[t] = true
	}
	return nil
}

// Translator turns genomes into populated networks. It holds no per-genome
// state and may be shared.
type Translator struct {
	cfg     TranslatorConfig
	enabled map[int]GateType
}

func NewTranslator(cfg TranslatorConfig) (*Translator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	enabled := make(map[int]GateType, len(cfg.GateTypes))
	for _, t := range cfg.GateTypes {
		enabled[int(t)] = t
	}
	return &Translator{cfg: cfg, enabled: enabled}, nil
}

func (t *Translator) Config() TranslatorConfig {
	return t.cfg
}

// Translate appends one gate to net for every start codon of an enabled type
// found in g. Scanning advances one position at a time, so gene bodies may
// overlap each other and later codons.
func (t *Translator) Translate(g genome.Genome, net *Network) {
	if len(g) < 2 {
		return
	}
	for i := 0; i < len(g); i++ {
		kind, ok := t.codonAt(g, i)
		if !ok {
			continue
		}
		net.AddGate(t.parse(kind, g.CursorAt(i+2), net.Size()))
	}
}

// TranslateDeep is Translate for layered networks: the value following each
// codon picks the layer, modulo the layer count, that receives the gate.
func (t *Translator) TranslateDeep(g genome.Genome, deep *DeepNetwork) {
	if len(g) < 2 || deep.NumLayers() == 0 {
		return
	}
	for i := 0; i < len(g); i++ {
		kind, ok := t.codonAt(g, i)
		if !ok {
			continue
		}
		c := g.CursorAt(i + 2)
		layer := deep.Layer(mod(c.Next(), deep.NumLayers()))
		layer.AddGate(t.parse(kind, c, layer.Size()))
	}
}

func (t *Translator) codonAt(g genome.Genome, i int) (GateType, bool) {
	if !g.IsStartCodon(i) {
		return 0, false
	}
	kind, ok := t.enabled[g.At(i)]
	return kind, ok
}

func (t *Translator) parse(kind GateType, c *genome.Cursor, states int) Gate {
	nin := modnorm(c.Next(), t.cfg.InputFloor, t.cfg.InputLimit)
	nout := modnorm(c.Next(), t.cfg.OutputFloor, t.cfg.OutputLimit)
	inputs := readIndices(c, nin, states)
	outputs := readIndices(c, nout, states)

	switch kind {
	case Logic:
		table := make([]int, 1<<nin)
		for i := range table {
			table[i] = c.Next()
		}
		return NewLogicGate(inputs, outputs, table)
	case Probabilistic:
		return NewProbabilisticGate(inputs, outputs, readMatrix(c, nin, nout))
	case Adaptive:
		h := modnorm(c.Next(), t.cfg.HistoryFloor, t.cfg.HistoryLimit)
		reinforce := mod(c.Next(), states)
		inhibit := mod(c.Next(), states)
		positive := make([]float64, h)
		for i := range positive {
			positive[i] = t.weight(c.Next())
		}
		negative := make([]float64, h)
		for i := range negative {
			negative[i] = -t.weight(c.Next())
		}
		return NewAdaptiveGate(reinforce, inhibit, inputs, outputs, readMatrix(c, nin, nout), positive, negative)
	default:
		panic(fmt.Sprintf("markov: translator enabled unsupported gate type %d", int(kind)))
	}
}

// weight maps a raw value onto [0, 1] in WeightSteps levels.
func (t *Translator) weight(raw int) float64 {
	return float64(mod(raw, t.cfg.WeightSteps)) / float64(t.cfg.WeightSteps-1)
}

func modnorm(x, floor, limit int) int {
	return floor + mod(x, limit-floor)
}

// mod is x modulo n in [0, n), so negative genome values stay in range too.
func mod(x, n int) int {
	r := x % n
	if r < 0 {
		r += n
	}
	return r
}

func readIndices(c *genome.Cursor, n, states int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = mod(c.Next(), states)
	}
	return idx
}

func readMatrix(c *genome.Cursor, nin, nout int) Matrix {
	rows, cols := 1<<nin, 1<<nout
	raw := make([]int, rows*cols)
	for i := range raw {
		raw[i] = c.Next()
	}
	return NewMatrix(rows, cols, raw)
}
