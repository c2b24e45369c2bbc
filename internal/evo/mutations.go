package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"gatenet/internal/genome"
	"gatenet/internal/model"
)

var ErrNoRandomSource = errors.New("random source is required")

// MutationParams carries the knobs shared by the genome operators.
type MutationParams struct {
	// PerSiteRate is the probability that any single value is replaced.
	PerSiteRate float64 `json:"per_site_rate"`
	// InsertionRate and DeletionRate are per-application probabilities of one
	// chunk event.
	InsertionRate float64 `json:"insertion_rate"`
	DeletionRate  float64 `json:"deletion_rate"`
	ChunkMin      int     `json:"chunk_min"`
	ChunkMax      int     `json:"chunk_max"`
	MinSize       int     `json:"min_size"`
	MaxSize       int     `json:"max_size"`
	ValueMax      int     `json:"value_max"`
}

func DefaultMutationParams() MutationParams {
	return MutationParams{
		PerSiteRate:   0.005,
		InsertionRate: 0.05,
		DeletionRate:  0.05,
		ChunkMin:      16,
		ChunkMax:      128,
		MinSize:       64,
		MaxSize:       10000,
		ValueMax:      genome.DefaultValueMax,
	}
}

func (p MutationParams) Validate() error {
	rates := []struct {
		name string
		v    float64
	}{
		{"per-site rate", p.PerSiteRate},
		{"insertion rate", p.InsertionRate},
		{"deletion rate", p.DeletionRate},
	}
	for _, r := range rates {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", r.name, r.v)
		}
	}
	if p.ChunkMin < 1 || p.ChunkMax < p.ChunkMin {
		return fmt.Errorf("invalid chunk bounds: min=%d max=%d", p.ChunkMin, p.ChunkMax)
	}
	if p.MinSize < 2 || p.MaxSize < p.MinSize {
		return fmt.Errorf("invalid genome size bounds: min=%d max=%d", p.MinSize, p.MaxSize)
	}
	if p.ValueMax <= 0 {
		return fmt.Errorf("value max must be > 0, got %d", p.ValueMax)
	}
	return nil
}

// PerSite replaces every value independently with probability Rate.
type PerSite struct {
	Rand     *rand.Rand
	Rate     float64
	ValueMax int
}

func (o *PerSite) Name() string {
	return "per_site"
}

func (o *PerSite) Apply(_ context.Context, g model.Genome) (model.Genome, error) {
	if err := checkOperand(o.Rand, g); err != nil {
		return model.Genome{}, err
	}
	mutated := cloneGenome(g)
	for i := range mutated.Values {
		if o.Rand.Float64() < o.Rate {
			mutated.Values[i] = o.Rand.Intn(o.ValueMax + 1)
		}
	}
	return mutated, nil
}

// Insertion copies a random chunk of the genome, read circularly, to a random
// position. The result never grows past MaxSize.
type Insertion struct {
	Rand     *rand.Rand
	Rate     float64
	ChunkMin int
	ChunkMax int
	MaxSize  int
}

func (o *Insertion) Name() string {
	return "insertion"
}

func (o *Insertion) Apply(_ context.Context, g model.Genome) (model.Genome, error) {
	if err := checkOperand(o.Rand, g); err != nil {
		return model.Genome{}, err
	}
	mutated := cloneGenome(g)
	if o.Rand.Float64() >= o.Rate {
		return mutated, nil
	}

	n := len(g.Values)
	size := chunkSize(o.Rand, o.ChunkMin, o.ChunkMax, n)
	if o.MaxSize > 0 && n+size > o.MaxSize {
		size = o.MaxSize - n
	}
	if size <= 0 {
		return mutated, nil
	}

	src := genome.Genome(g.Values).CursorAt(o.Rand.Intn(n))
	chunk := make([]int, size)
	for i := range chunk {
		chunk[i] = src.Next()
	}
	mutated.Values = slices.Insert(mutated.Values, o.Rand.Intn(n+1), chunk...)
	return mutated, nil
}

// Deletion removes a random contiguous chunk. The result never shrinks below
// MinSize.
type Deletion struct {
	Rand     *rand.Rand
	Rate     float64
	ChunkMin int
	ChunkMax int
	MinSize  int
}

func (o *Deletion) Name() string {
	return "deletion"
}

func (o *Deletion) Apply(_ context.Context, g model.Genome) (model.Genome, error) {
	if err := checkOperand(o.Rand, g); err != nil {
		return model.Genome{}, err
	}
	mutated := cloneGenome(g)
	if o.Rand.Float64() >= o.Rate {
		return mutated, nil
	}

	n := len(g.Values)
	size := chunkSize(o.Rand, o.ChunkMin, o.ChunkMax, n)
	if n-size < o.MinSize {
		size = n - o.MinSize
	}
	if size <= 0 {
		return mutated, nil
	}
	start := o.Rand.Intn(n - size + 1)
	mutated.Values = slices.Delete(mutated.Values, start, start+size)
	return mutated, nil
}

// Structural applies insertion and deletion first and point mutation last,
// so point mutation sites are drawn against the post-indel length.
type Structural struct {
	Insertion *Insertion
	Deletion  *Deletion
	PerSite   *PerSite
}

// NewStructural binds all three stages to the same random source.
func NewStructural(rng *rand.Rand, p MutationParams) *Structural {
	return &Structural{
		Insertion: &Insertion{Rand: rng, Rate: p.InsertionRate, ChunkMin: p.ChunkMin, ChunkMax: p.ChunkMax, MaxSize: p.MaxSize},
		Deletion:  &Deletion{Rand: rng, Rate: p.DeletionRate, ChunkMin: p.ChunkMin, ChunkMax: p.ChunkMax, MinSize: p.MinSize},
		PerSite:   &PerSite{Rand: rng, Rate: p.PerSiteRate, ValueMax: p.ValueMax},
	}
}

func (o *Structural) Name() string {
	return "structural"
}

func (o *Structural) Apply(ctx context.Context, g model.Genome) (model.Genome, error) {
	mutated := g
	for _, op := range []Operator{o.Insertion, o.Deletion, o.PerSite} {
		if err := ctx.Err(); err != nil {
			return model.Genome{}, err
		}
		next, err := op.Apply(ctx, mutated)
		if err != nil {
			return model.Genome{}, fmt.Errorf("%s: %w", op.Name(), err)
		}
		mutated = next
	}
	return mutated, nil
}

func checkOperand(rng *rand.Rand, g model.Genome) error {
	if rng == nil {
		return ErrNoRandomSource
	}
	if len(g.Values) == 0 {
		return genome.ErrEmptyGenome
	}
	return nil
}

// chunkSize draws a chunk length in [lo, hi], clipped to the genome length n.
func chunkSize(rng *rand.Rand, lo, hi, n int) int {
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	if hi <= 0 {
		return 0
	}
	return lo + rng.Intn(hi-lo+1)
}

func cloneGenome(g model.Genome) model.Genome {
	out := g
	out.Values = append([]int(nil), g.Values...)
	return out
}
