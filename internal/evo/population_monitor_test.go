package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"gatenet/internal/genome"
	"gatenet/internal/markov"
	"gatenet/internal/model"
	"gatenet/internal/scape"
)

type namedNoopMutation struct {
	name string
}

func (m namedNoopMutation) Name() string {
	return m.name
}

func (m namedNoopMutation) Apply(_ context.Context, g model.Genome) (model.Genome, error) {
	return cloneGenome(g), nil
}

type failingMutation struct{}

func (failingMutation) Name() string {
	return "failing"
}

func (failingMutation) Apply(context.Context, model.Genome) (model.Genome, error) {
	return model.Genome{}, errors.New("mutation failed")
}

type failingScape struct{}

func (failingScape) Name() string {
	return "failing"
}

func (failingScape) Evaluate(context.Context, scape.Phenotype) (scape.Fitness, scape.Trace, error) {
	return 0, nil, errors.New("scape failed")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("child-%d", n)
	}
}

func seedPopulation(t *testing.T, seed int64, n int, types []markov.GateType) []model.Genome {
	t.Helper()
	codons := make([]int, len(types))
	for i, kind := range types {
		codons[i] = int(kind)
	}
	rng := rand.New(rand.NewSource(seed))
	population := make([]model.Genome, n)
	for i := range population {
		values, err := genome.Ancestor(rng, 400, 8, codons, genome.DefaultValueMax)
		if err != nil {
			t.Fatalf("ancestor: %v", err)
		}
		population[i] = model.Genome{
			VersionedRecord: model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion},
			ID:              fmt.Sprintf("seed-%d", i),
			Values:          values,
		}
	}
	return population
}

func xorBuilder(t *testing.T, types []markov.GateType) *NetworkBuilder {
	t.Helper()
	cfg := markov.DefaultTranslatorConfig()
	cfg.GateTypes = types
	tr, err := markov.NewTranslator(cfg)
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}
	b, err := NewNetworkBuilder(tr, []markov.Geometry{{Inputs: 2, Outputs: 1, Hidden: 4}})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b
}

func xorMonitorConfig(t *testing.T, types []markov.GateType) MonitorConfig {
	t.Helper()
	params := DefaultMutationParams()
	params.PerSiteRate = 0.02
	params.MaxSize = 1000
	return MonitorConfig{
		Scape:          scape.XORScape{},
		Builder:        xorBuilder(t, types),
		Mutation:       NewStructural(rand.New(rand.NewSource(99)), params),
		PopulationSize: 12,
		EliteCount:     3,
		Generations:    6,
		Workers:        4,
		Seed:           7,
		NewID:          counterIDs(),
		Logger:         quietLogger(),
	}
}

func TestPopulationMonitorElitismKeepsBestFitness(t *testing.T) {
	types := []markov.GateType{markov.Logic}
	monitor, err := NewPopulationMonitor(xorMonitorConfig(t, types))
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background(), seedPopulation(t, 1, 12, types))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.BestByGeneration) != 6 || len(result.GenerationDiagnostics) != 6 {
		t.Fatalf("unexpected history lengths: best=%d diagnostics=%d", len(result.BestByGeneration), len(result.GenerationDiagnostics))
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] < result.BestByGeneration[i-1] {
			t.Fatalf("best fitness regressed at generation %d: %v", i+1, result.BestByGeneration)
		}
	}
	for i, d := range result.GenerationDiagnostics {
		if d.Generation != i+1 {
			t.Fatalf("unexpected generation number: got=%d want=%d", d.Generation, i+1)
		}
		if d.MinFitness > d.MeanFitness || d.MeanFitness > d.BestFitness {
			t.Fatalf("inconsistent diagnostics: %+v", d)
		}
		if d.DistinctFingerprint < 1 || d.DistinctFingerprint > 12 {
			t.Fatalf("unexpected fingerprint count: %+v", d)
		}
	}
	best, ok := result.Best()
	if !ok || best.Fitness != result.BestByGeneration[5] {
		t.Fatalf("unexpected best: %+v ok=%v", best, ok)
	}
	if len(result.FinalPopulation) != 12 {
		t.Fatalf("unexpected final population size: %d", len(result.FinalPopulation))
	}
}

func TestPopulationMonitorDeterministicAcrossWorkers(t *testing.T) {
	types := markov.AllGateTypes()
	run := func(workers int) RunResult {
		cfg := xorMonitorConfig(t, types)
		cfg.Workers = workers
		monitor, err := NewPopulationMonitor(cfg)
		if err != nil {
			t.Fatalf("new monitor: %v", err)
		}
		result, err := monitor.Run(context.Background(), seedPopulation(t, 3, 12, types))
		if err != nil {
			t.Fatalf("run workers=%d: %v", workers, err)
		}
		return result
	}

	serial, parallel := run(1), run(8)
	for i := range serial.BestByGeneration {
		if serial.BestByGeneration[i] != parallel.BestByGeneration[i] {
			t.Fatalf("best history differs at %d: serial=%v parallel=%v", i, serial.BestByGeneration, parallel.BestByGeneration)
		}
		if serial.GenerationDiagnostics[i] != parallel.GenerationDiagnostics[i] {
			t.Fatalf("diagnostics differ at %d: serial=%+v parallel=%+v", i, serial.GenerationDiagnostics[i], parallel.GenerationDiagnostics[i])
		}
	}
	for i := range serial.FinalPopulation {
		if serial.FinalPopulation[i].Genome.ID != parallel.FinalPopulation[i].Genome.ID {
			t.Fatalf("final ranking differs at %d", i)
		}
	}
}

func TestPopulationMonitorRecordsLineage(t *testing.T) {
	types := []markov.GateType{markov.Logic}
	cfg := xorMonitorConfig(t, types)
	cfg.Generations = 3
	cfg.Mutation = nil
	cfg.MutationPolicy = []WeightedMutation{
		{Operator: namedNoopMutation{name: "a"}, Weight: 1},
		{Operator: namedNoopMutation{name: "b"}, Weight: 0},
	}
	cfg.MutationCount = ConstMutationCount{Count: 2}
	monitor, err := NewPopulationMonitor(cfg)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background(), seedPopulation(t, 5, 12, types))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Seeds plus two bred generations.
	if len(result.Lineage) != 12*3 {
		t.Fatalf("unexpected lineage size: %d", len(result.Lineage))
	}
	counts := map[string]int{}
	for _, record := range result.Lineage {
		counts[record.Operation]++
		switch record.Operation {
		case "seed":
			if record.ParentID != "" || record.Generation != 0 {
				t.Fatalf("unexpected seed record: %+v", record)
			}
		case "elite_clone":
			if record.ParentID != record.GenomeID {
				t.Fatalf("elite clone changed id: %+v", record)
			}
		case "a+a":
			if record.ParentID == "" || !strings.HasPrefix(record.GenomeID, "child-") {
				t.Fatalf("unexpected offspring record: %+v", record)
			}
		default:
			t.Fatalf("unexpected operation: %q", record.Operation)
		}
		if record.Length != 400 || record.Fingerprint == "" {
			t.Fatalf("unexpected signature in record: %+v", record)
		}
	}
	if counts["seed"] != 12 || counts["elite_clone"] != 6 || counts["a+a"] != 18 {
		t.Fatalf("unexpected operation counts: %v", counts)
	}
}

func TestPopulationMonitorConfigValidation(t *testing.T) {
	types := []markov.GateType{markov.Logic}
	tests := []struct {
		name   string
		mutate func(*MonitorConfig)
	}{
		{name: "scape", mutate: func(c *MonitorConfig) { c.Scape = nil }},
		{name: "builder", mutate: func(c *MonitorConfig) { c.Builder = nil }},
		{name: "mutation", mutate: func(c *MonitorConfig) { c.Mutation = nil }},
		{name: "population", mutate: func(c *MonitorConfig) { c.PopulationSize = 0 }},
		{name: "elite", mutate: func(c *MonitorConfig) { c.EliteCount = c.PopulationSize + 1 }},
		{name: "generations", mutate: func(c *MonitorConfig) { c.Generations = 0 }},
		{name: "policy-weight", mutate: func(c *MonitorConfig) {
			c.MutationPolicy = []WeightedMutation{{Operator: namedNoopMutation{name: "a"}, Weight: 0}}
		}},
		{name: "policy-operator", mutate: func(c *MonitorConfig) {
			c.MutationPolicy = []WeightedMutation{{Weight: 1}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := xorMonitorConfig(t, types)
			tc.mutate(&cfg)
			if _, err := NewPopulationMonitor(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPopulationMonitorRunErrors(t *testing.T) {
	types := []markov.GateType{markov.Logic}

	t.Run("population-size", func(t *testing.T) {
		monitor, err := NewPopulationMonitor(xorMonitorConfig(t, types))
		if err != nil {
			t.Fatalf("new monitor: %v", err)
		}
		if _, err := monitor.Run(context.Background(), seedPopulation(t, 1, 5, types)); err == nil {
			t.Fatal("expected population mismatch error")
		}
	})

	t.Run("mutation", func(t *testing.T) {
		cfg := xorMonitorConfig(t, types)
		cfg.Mutation = failingMutation{}
		monitor, err := NewPopulationMonitor(cfg)
		if err != nil {
			t.Fatalf("new monitor: %v", err)
		}
		_, err = monitor.Run(context.Background(), seedPopulation(t, 1, 12, types))
		if err == nil || !strings.Contains(err.Error(), "mutation failed") {
			t.Fatalf("expected mutation error, got: %v", err)
		}
	})

	t.Run("scape", func(t *testing.T) {
		cfg := xorMonitorConfig(t, types)
		cfg.Scape = failingScape{}
		monitor, err := NewPopulationMonitor(cfg)
		if err != nil {
			t.Fatalf("new monitor: %v", err)
		}
		_, err = monitor.Run(context.Background(), seedPopulation(t, 1, 12, types))
		if err == nil || !strings.Contains(err.Error(), "scape failed") {
			t.Fatalf("expected scape error, got: %v", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		monitor, err := NewPopulationMonitor(xorMonitorConfig(t, types))
		if err != nil {
			t.Fatalf("new monitor: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := monitor.Run(ctx, seedPopulation(t, 1, 12, types)); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got: %v", err)
		}
	})
}

func TestNetworkBuilder(t *testing.T) {
	tr, err := markov.NewTranslator(markov.DefaultTranslatorConfig())
	if err != nil {
		t.Fatalf("new translator: %v", err)
	}
	if _, err := NewNetworkBuilder(nil, []markov.Geometry{{Inputs: 1, Outputs: 1}}); err == nil {
		t.Fatal("expected translator error")
	}
	if _, err := NewNetworkBuilder(tr, nil); !errors.Is(err, markov.ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got: %v", err)
	}
	if _, err := NewNetworkBuilder(tr, []markov.Geometry{{Inputs: 2, Outputs: 3}, {Inputs: 2, Outputs: 1}}); !errors.Is(err, markov.ErrInvalidGeometry) {
		t.Fatalf("expected cascade width error, got: %v", err)
	}

	deep, err := NewNetworkBuilder(tr, []markov.Geometry{{Inputs: 2, Outputs: 3, Hidden: 1}, {Inputs: 3, Outputs: 1, Hidden: 2}})
	if err != nil {
		t.Fatalf("new deep builder: %v", err)
	}
	if deep.Inputs() != 2 || deep.Outputs() != 1 {
		t.Fatalf("unexpected widths: in=%d out=%d", deep.Inputs(), deep.Outputs())
	}
	phenotype, err := deep.Build(rampGenome("g", 64), 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := phenotype.(*markov.DeepNetwork); !ok {
		t.Fatalf("expected deep network phenotype, got %T", phenotype)
	}
	if err := deep.CheckShape(scape.XORScape{}); err != nil {
		t.Fatalf("check xor shape: %v", err)
	}
	if err := deep.CheckShape(scape.EchoScape{Width: 3}); err == nil {
		t.Fatal("expected echo shape mismatch")
	}

	single := xorBuilder(t, markov.AllGateTypes())
	phenotype, err = single.Build(rampGenome("g", 64), 1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := phenotype.(*markov.Network); !ok {
		t.Fatalf("expected network phenotype, got %T", phenotype)
	}

	// Layers set directly skip the constructor's checks; Build must still
	// hand back an untyped nil on failure.
	broken := []struct {
		name   string
		layers []markov.Geometry
	}{
		{name: "single", layers: []markov.Geometry{{}}},
		{name: "deep", layers: []markov.Geometry{{Inputs: 1, Outputs: 1}, {}}},
	}
	for _, tc := range broken {
		t.Run(tc.name, func(t *testing.T) {
			b := &NetworkBuilder{Translator: tr, Layers: tc.layers}
			phenotype, err := b.Build(rampGenome("g", 64), 1)
			if !errors.Is(err, markov.ErrInvalidGeometry) {
				t.Fatalf("unexpected build error: got=%v want=%v", err, markov.ErrInvalidGeometry)
			}
			if phenotype != nil {
				t.Fatalf("unexpected phenotype on error: got=%#v want=nil", phenotype)
			}
		})
	}
}
