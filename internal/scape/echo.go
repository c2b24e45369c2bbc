package scape

import (
	"context"
	"fmt"
)

const maxEchoWidth = 10

// EchoScape asks a phenotype to reproduce every Width-bit input pattern on
// its first Width outputs.
type EchoScape struct {
	Width int
	Steps int
}

func (EchoScape) Name() string {
	return "echo"
}

func (s EchoScape) Dimensions() (int, int) {
	return s.Width, s.Width
}

func (s EchoScape) Evaluate(ctx context.Context, phenotype Phenotype) (Fitness, Trace, error) {
	if s.Width <= 0 || s.Width > maxEchoWidth {
		return 0, nil, fmt.Errorf("echo width must be in [1,%d], got %d", maxEchoWidth, s.Width)
	}
	cases := make([]bitCase, 0, 1<<s.Width)
	for pattern := 0; pattern < 1<<s.Width; pattern++ {
		bits := make([]int, s.Width)
		for i := range bits {
			bits[i] = (pattern >> i) & 0x01
		}
		cases = append(cases, bitCase{in: bits, want: bits})
	}
	return evaluateCases(ctx, phenotype, caseSet{mode: "echo", cases: cases}, settleSteps(s.Steps))
}
