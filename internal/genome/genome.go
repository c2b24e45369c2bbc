package genome

import (
	"errors"
	"fmt"
	"math/rand"
)

// CodonSum is the value two adjacent genome positions must add up to in order
// to mark the start of a gene.
const CodonSum = 255

// DefaultValueMax is the largest value a freshly generated genome position takes.
const DefaultValueMax = 255

var ErrEmptyGenome = errors.New("genome is empty")

// Genome is a circular sequence of small non-negative integers. Reads through
// At wrap around the end so a gene may straddle the last position.
type Genome []int

func (g Genome) Len() int {
	return len(g)
}

// At returns the value at i modulo the genome length. It panics on an empty
// genome.
func (g Genome) At(i int) int {
	n := len(g)
	if n == 0 {
		panic(ErrEmptyGenome)
	}
	i %= n
	if i < 0 {
		i += n
	}
	return g[i]
}

func (g Genome) Clone() Genome {
	if g == nil {
		return nil
	}
	return append(Genome(nil), g...)
}

// IsStartCodon reports whether positions i and i+1 form a start codon.
func (g Genome) IsStartCodon(i int) bool {
	if len(g) < 2 {
		return false
	}
	return g.At(i)+g.At(i+1) == CodonSum
}

// Cursor reads successive genome values starting at a position, wrapping at
// the end of the genome.
type Cursor struct {
	g   Genome
	pos int
}

func (g Genome) CursorAt(pos int) *Cursor {
	return &Cursor{g: g, pos: pos}
}

func (c *Cursor) Next() int {
	v := c.g.At(c.pos)
	c.pos++
	return v
}

func (c *Cursor) Pos() int {
	return c.pos
}

// Ancestor builds a random genome of the given size with values in
// [0, valueMax] and plants gates start codons, chosen uniformly from codons,
// at random positions. The gene bodies following each codon are left random.
func Ancestor(rng *rand.Rand, size, gates int, codons []int, valueMax int) (Genome, error) {
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if size < 2 {
		return nil, fmt.Errorf("ancestor size must be >= 2: %d", size)
	}
	if gates < 0 {
		return nil, fmt.Errorf("ancestor gate count must be >= 0: %d", gates)
	}
	if gates > 0 && len(codons) == 0 {
		return nil, errors.New("ancestor codons are required when planting gates")
	}
	if valueMax <= 0 {
		valueMax = DefaultValueMax
	}

	g := make(Genome, size)
	for i := range g {
		g[i] = rng.Intn(valueMax + 1)
	}
	for i := 0; i < gates; i++ {
		codon := codons[rng.Intn(len(codons))]
		j := rng.Intn(size)
		g[j] = codon
		g[(j+1)%size] = CodonSum - codon
	}
	return g, nil
}
