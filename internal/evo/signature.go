package evo

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"

	"gatenet/internal/genome"
	"gatenet/internal/markov"
	"gatenet/internal/model"
)

type GenomeSignature struct {
	Fingerprint string `json:"fingerprint"`
	Length      int    `json:"length"`
	Codons      int    `json:"codons"`
}

func ComputeGenomeSignature(g model.Genome) GenomeSignature {
	buf := make([]byte, 8*len(g.Values))
	for i, v := range g.Values {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(int64(v)))
	}
	digest := sha1.Sum(buf)
	return GenomeSignature{
		Fingerprint: hex.EncodeToString(digest[:8]),
		Length:      len(g.Values),
		Codons:      CountCodons(g.Values),
	}
}

// CountCodons counts the start codons of every known gate type, which is the
// number of gates a translator with all types enabled would build.
func CountCodons(values []int) int {
	g := genome.Genome(values)
	if len(g) < 2 {
		return 0
	}
	count := 0
	for i := range g {
		if !g.IsStartCodon(i) {
			continue
		}
		switch markov.GateType(g[i]) {
		case markov.Logic, markov.Probabilistic, markov.Adaptive:
			count++
		}
	}
	return count
}
