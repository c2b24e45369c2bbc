package gatenet

import (
	"context"
	"time"

	"gatenet/internal/stats"
)

type ExportRunRequest struct {
	RunID string
	// Dir receives one sub-directory per run plus the run index.
	Dir            string
	MinImprovement float64
}

type ExportRunResult struct {
	RunDir  string
	Summary stats.BenchmarkSummary
}

// ExportRun writes a stored run to disk as JSON and CSV artifacts and records
// it in the directory's run index.
func (c *Client) ExportRun(ctx context.Context, req ExportRunRequest) (ExportRunResult, error) {
	run, err := c.RunRecord(ctx, req.RunID)
	if err != nil {
		return ExportRunResult{}, err
	}
	history, err := c.FitnessHistory(ctx, req.RunID)
	if err != nil {
		return ExportRunResult{}, err
	}
	diagnostics, err := c.Diagnostics(ctx, req.RunID)
	if err != nil {
		return ExportRunResult{}, err
	}
	lineage, err := c.Lineage(ctx, req.RunID)
	if err != nil {
		return ExportRunResult{}, err
	}

	artifacts := stats.RunArtifacts{
		Run:                   run,
		BestByGeneration:      history,
		GenerationDiagnostics: diagnostics,
		Lineage:               lineage,
		TopGenomes:            []stats.TopGenome{},
	}
	if best, ok, err := c.store.GetGenome(ctx, run.BestGenomeID); err != nil {
		return ExportRunResult{}, err
	} else if ok {
		artifacts.TopGenomes = append(artifacts.TopGenomes, stats.TopGenome{Rank: 1, Fitness: run.BestFitness, Genome: best})
	}

	runDir, err := stats.WriteRunArtifacts(req.Dir, artifacts)
	if err != nil {
		return ExportRunResult{}, err
	}
	summary, err := stats.Summarize(run, history, req.MinImprovement)
	if err != nil {
		return ExportRunResult{}, err
	}
	if err := stats.WriteBenchmarkSummary(runDir, summary); err != nil {
		return ExportRunResult{}, err
	}
	if err := stats.AppendRunIndex(req.Dir, stats.RunIndexEntry{
		RunID:            run.ID,
		Scape:            run.Scape,
		PopulationSize:   run.PopulationSize,
		Generations:      run.Generations,
		Seed:             run.Seed,
		FinalBestFitness: run.BestFitness,
		CreatedAtUTC:     time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return ExportRunResult{}, err
	}
	c.log.Info("run exported", "run_id", run.ID, "dir", runDir)
	return ExportRunResult{RunDir: runDir, Summary: summary}, nil
}

// ListExportedRuns reads the run index of an export directory, newest first.
func (c *Client) ListExportedRuns(dir string) ([]stats.RunIndexEntry, error) {
	return stats.ListRunIndex(dir)
}
