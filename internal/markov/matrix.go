package markov

import (
	"math"
	"math/rand"
)

// Matrix is a row-stochastic matrix: row i is the distribution over output
// codes given input code i.
type Matrix [][]float64

// NewMatrix builds a rows x cols matrix from raw non-negative values read in
// row-major order and normalizes every row.
func NewMatrix(rows, cols int, raw []int) Matrix {
	m := make(Matrix, rows)
	for i := range m {
		row := make([]float64, cols)
		for j := range row {
			row[j] = float64(raw[i*cols+j])
		}
		m[i] = row
		m.Normalize(i)
	}
	return m
}

// IdentityMatrix returns the n x n matrix that always maps code i to code i.
func IdentityMatrix(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

func (m Matrix) Rows() int { return len(m) }

func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

func (m Matrix) Clone() Matrix {
	c := make(Matrix, len(m))
	for i := range m {
		c[i] = append([]float64(nil), m[i]...)
	}
	return c
}

// Normalize rescales row i to sum to one. Negative and non-finite cells are
// clamped to zero first; a row with no mass becomes uniform.
func (m Matrix) Normalize(i int) {
	row := m[i]
	sum := 0.0
	for j, v := range row {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			row[j] = 0
			continue
		}
		sum += v
	}
	if sum <= 0 {
		u := 1.0 / float64(len(row))
		for j := range row {
			row[j] = u
		}
		return
	}
	for j := range row {
		row[j] /= sum
	}
}

// Scale multiplies cell (i, j) by factor and renormalizes row i.
func (m Matrix) Scale(i, j int, factor float64) {
	m[i][j] *= factor
	m.Normalize(i)
}

// Sample draws a column from row i.
func (m Matrix) Sample(i int, rng *rand.Rand) int {
	row := m[i]
	p := rng.Float64()
	cum := 0.0
	last := 0
	for j, v := range row {
		if v <= 0 {
			continue
		}
		cum += v
		last = j
		if p < cum {
			return j
		}
	}
	return last
}

// RowSums returns the sum of every row.
func (m Matrix) RowSums() []float64 {
	sums := make([]float64, len(m))
	for i, row := range m {
		for _, v := range row {
			sums[i] += v
		}
	}
	return sums
}
