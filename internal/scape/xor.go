package scape

import (
	"context"
	"fmt"
	"strings"
)

const defaultSettleSteps = 2

// XORScape scores a phenotype on two-input parity. Every case starts from a
// cleared network and reads the output after Steps updates.
type XORScape struct {
	Steps int
}

func (XORScape) Name() string {
	return "xor"
}

func (XORScape) Dimensions() (int, int) {
	return 2, 1
}

func (s XORScape) Evaluate(ctx context.Context, phenotype Phenotype) (Fitness, Trace, error) {
	return s.EvaluateMode(ctx, phenotype, "gt")
}

func (s XORScape) EvaluateMode(ctx context.Context, phenotype Phenotype, mode string) (Fitness, Trace, error) {
	cfg, err := xorConfigForMode(mode)
	if err != nil {
		return 0, nil, err
	}
	return evaluateCases(ctx, phenotype, cfg, settleSteps(s.Steps))
}

type bitCase struct {
	in   []int
	want []int
}

type caseSet struct {
	mode  string
	cases []bitCase
}

func xorConfigForMode(mode string) (caseSet, error) {
	base := []bitCase{
		{in: []int{0, 0}, want: []int{0}},
		{in: []int{0, 1}, want: []int{1}},
		{in: []int{1, 0}, want: []int{1}},
		{in: []int{1, 1}, want: []int{0}},
	}

	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "gt":
		return caseSet{mode: "gt", cases: base}, nil
	case "validation":
		return caseSet{
			mode:  "validation",
			cases: []bitCase{base[1], base[2], base[0], base[3], base[1], base[2]},
		}, nil
	case "test":
		return caseSet{
			mode:  "test",
			cases: []bitCase{base[3], base[2], base[1], base[0], base[3], base[0], base[2], base[1]},
		}, nil
	default:
		return caseSet{}, fmt.Errorf("unsupported xor mode: %s", mode)
	}
}

func settleSteps(steps int) int {
	if steps <= 0 {
		return defaultSettleSteps
	}
	return steps
}

// evaluateCases scores the fraction of output bits that match across all
// cases, so a perfect phenotype scores 1.
func evaluateCases(ctx context.Context, phenotype Phenotype, cfg caseSet, steps int) (Fitness, Trace, error) {
	if phenotype == nil {
		return 0, nil, fmt.Errorf("phenotype is required")
	}
	correct, total := 0, 0
	var sse float64
	predictions := make([][]int, 0, len(cfg.cases))
	for _, c := range cfg.cases {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		phenotype.Clear()
		phenotype.Update(c.in, steps)
		out := phenotype.Outputs()
		if len(out) < len(c.want) {
			return 0, nil, fmt.Errorf("%s requires %d outputs, got %d", cfg.mode, len(c.want), len(out))
		}
		predicted := append([]int(nil), out[:len(c.want)]...)
		predictions = append(predictions, predicted)
		for k, want := range c.want {
			got := 0
			if predicted[k] != 0 {
				got = 1
			}
			if got == want {
				correct++
			} else {
				sse++
			}
			total++
		}
	}

	if total == 0 {
		return 0, Trace{"mode": cfg.mode, "cases": 0, "correct": 0, "sse": 0.0, "predictions": predictions}, nil
	}
	return Fitness(float64(correct) / float64(total)), Trace{
		"mode":        cfg.mode,
		"cases":       len(cfg.cases),
		"correct":     correct,
		"sse":         sse,
		"mse":         sse / float64(total),
		"predictions": predictions,
	}, nil
}
