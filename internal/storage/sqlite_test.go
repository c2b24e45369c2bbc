//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"gatenet/internal/model"
)

func newInitializedSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "gatenet.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreGenomeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedSQLiteStore(t)

	genome := model.Genome{VersionedRecord: Versioned(), ID: "g1", ParentID: "g0", Generation: 2, Values: []int{42, 213, 1, 0}}
	if err := store.SaveGenome(ctx, genome); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	genome.Values = []int{7}
	genome.Generation = 3
	if err := store.SaveGenome(ctx, genome); err != nil {
		t.Fatalf("overwrite genome: %v", err)
	}

	loaded, ok, err := store.GetGenome(ctx, "g1")
	if err != nil || !ok {
		t.Fatalf("get genome: ok=%v err=%v", ok, err)
	}
	if loaded.Generation != 3 || len(loaded.Values) != 1 || loaded.ParentID != "g0" {
		t.Fatalf("unexpected genome loaded: %+v", loaded)
	}
	if _, ok, err := store.GetGenome(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected missing genome: ok=%v err=%v", ok, err)
	}

	if err := store.SaveGenome(ctx, model.Genome{VersionedRecord: Versioned(), ID: "a", Values: []int{1}}); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	genomes, err := store.ListGenomes(ctx)
	if err != nil {
		t.Fatalf("list genomes: %v", err)
	}
	if len(genomes) != 2 || genomes[0].ID != "a" || genomes[1].ID != "g1" {
		t.Fatalf("unexpected genomes: %+v", genomes)
	}
}

func TestSQLiteStoreRunRecords(t *testing.T) {
	ctx := context.Background()
	store := newInitializedSQLiteStore(t)

	run := model.RunRecord{VersionedRecord: Versioned(), ID: "run-1", Scape: "echo", Seed: 9, Layers: []model.Layer{{Inputs: 2, Outputs: 2, Hidden: 1}}}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	loadedRun, ok, err := store.GetRun(ctx, "run-1")
	if err != nil || !ok || loadedRun.Scape != "echo" || loadedRun.Seed != 9 || len(loadedRun.Layers) != 1 {
		t.Fatalf("unexpected run: %+v ok=%v err=%v", loadedRun, ok, err)
	}

	if err := store.SaveFitnessHistory(ctx, "run-1", []float64{0.25, 0.5}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || len(history) != 2 || history[1] != 0.5 {
		t.Fatalf("unexpected history: %v ok=%v err=%v", history, ok, err)
	}

	diagnostics := []model.GenerationDiagnostics{{Generation: 1, BestFitness: 0.5, MeanGateCount: 3}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loadedDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok || len(loadedDiagnostics) != 1 || loadedDiagnostics[0] != diagnostics[0] {
		t.Fatalf("unexpected diagnostics: %+v ok=%v err=%v", loadedDiagnostics, ok, err)
	}

	lineage := []model.LineageRecord{{VersionedRecord: Versioned(), GenomeID: "g1", ParentID: "g0", Generation: 1, Operation: "structural"}}
	if err := store.SaveLineage(ctx, "run-1", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	loadedLineage, ok, err := store.GetLineage(ctx, "run-1")
	if err != nil || !ok || len(loadedLineage) != 1 || loadedLineage[0].ParentID != "g0" {
		t.Fatalf("unexpected lineage: %+v ok=%v err=%v", loadedLineage, ok, err)
	}

	if _, ok, err := store.GetFitnessHistory(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected missing history: ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gatenet.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveGenome(ctx, model.Genome{VersionedRecord: Versioned(), ID: "g", Values: []int{3, 4}}); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	genome, ok, err := second.GetGenome(ctx, "g")
	if err != nil || !ok || len(genome.Values) != 2 {
		t.Fatalf("unexpected genome after reopen: %+v ok=%v err=%v", genome, ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "gatenet.db"))
	if _, _, err := store.GetGenome(context.Background(), "g"); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}
