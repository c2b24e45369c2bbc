package stats

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"gatenet/internal/model"
)

var ErrEmptySeries = errors.New("fitness series is empty")

type BenchmarkSummary struct {
	RunID          string  `json:"run_id"`
	Scape          string  `json:"scape"`
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	Seed           int64   `json:"seed"`
	InitialBest    float64 `json:"initial_best"`
	FinalBest      float64 `json:"final_best"`
	BestMean       float64 `json:"best_mean"`
	BestStd        float64 `json:"best_std"`
	BestMax        float64 `json:"best_max"`
	BestMin        float64 `json:"best_min"`
	Improvement    float64 `json:"improvement"`
	MinImprovement float64 `json:"min_improvement"`
	Passed         bool    `json:"passed"`
}

// Summarize reduces a best-by-generation series. The run passes when the
// final best exceeds the initial best by at least minImprovement.
func Summarize(run model.RunRecord, series []float64, minImprovement float64) (BenchmarkSummary, error) {
	if len(series) == 0 {
		return BenchmarkSummary{}, ErrEmptySeries
	}

	mean, std := stat.Mean(series, nil), 0.0
	if len(series) > 1 {
		std = stat.StdDev(series, nil)
	}
	initial, final := series[0], series[len(series)-1]
	return BenchmarkSummary{
		RunID:          run.ID,
		Scape:          run.Scape,
		PopulationSize: run.PopulationSize,
		Generations:    run.Generations,
		Seed:           run.Seed,
		InitialBest:    initial,
		FinalBest:      final,
		BestMean:       mean,
		BestStd:        std,
		BestMax:        floats.Max(series),
		BestMin:        floats.Min(series),
		Improvement:    final - initial,
		MinImprovement: minImprovement,
		Passed:         final-initial >= minImprovement,
	}, nil
}
