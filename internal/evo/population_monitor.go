package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"gatenet/internal/model"
	"gatenet/internal/scape"
)

type ScoredGenome struct {
	Genome  model.Genome
	Fitness float64
	Trace   scape.Trace
}

type RunResult struct {
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalPopulation       []ScoredGenome
	Lineage               []model.LineageRecord
}

// Best returns the fittest genome of the final generation.
func (r RunResult) Best() (ScoredGenome, bool) {
	if len(r.FinalPopulation) == 0 {
		return ScoredGenome{}, false
	}
	return r.FinalPopulation[0], true
}

type MonitorConfig struct {
	Scape          scape.Scape
	Builder        PhenotypeBuilder
	Mutation       Operator
	MutationPolicy []WeightedMutation
	MutationCount  MutationCountPolicy
	Selector       Selector
	Postprocessor  FitnessPostprocessor
	PopulationSize int
	EliteCount     int
	Generations    int
	// Workers bounds concurrent phenotype evaluations.
	Workers int
	Seed    int64
	// NewID names offspring. It defaults to random UUIDs.
	NewID  func() string
	Logger *slog.Logger
}

// PopulationMonitor runs a generational loop: evaluate, rank, keep elites,
// refill by selection and mutation.
type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
	log *slog.Logger
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("phenotype builder is required")
	}
	if cfg.Mutation == nil && len(cfg.MutationPolicy) == 0 {
		return nil, fmt.Errorf("mutation operator or policy is required")
	}
	positivePolicyWeight := false
	for i, item := range cfg.MutationPolicy {
		if item.Operator == nil {
			return nil, fmt.Errorf("mutation policy operator is required at index %d", i)
		}
		if item.Weight < 0 {
			return nil, fmt.Errorf("mutation policy weight must be >= 0 at index %d", i)
		}
		if item.Weight > 0 {
			positivePolicyWeight = true
		}
	}
	if len(cfg.MutationPolicy) > 0 && !positivePolicyWeight {
		return nil, fmt.Errorf("mutation policy requires at least one positive weight")
	}
	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.EliteCount <= 0 || cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [1, population size]")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Selector == nil {
		cfg.Selector = EliteSelector{}
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = NoopFitnessPostprocessor{}
	}
	if cfg.MutationCount == nil {
		cfg.MutationCount = ConstMutationCount{Count: 1}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		log: logger.With("component", "evo"),
	}, nil
}

func (m *PopulationMonitor) Run(ctx context.Context, initial []model.Genome) (RunResult, error) {
	if len(initial) != m.cfg.PopulationSize {
		return RunResult{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(initial), m.cfg.PopulationSize)
	}

	population := make([]model.Genome, len(initial))
	copy(population, initial)

	bestHistory := make([]float64, 0, m.cfg.Generations)
	diagnostics := make([]model.GenerationDiagnostics, 0, m.cfg.Generations)
	lineage := make([]model.LineageRecord, 0, len(initial)*(m.cfg.Generations+1))
	for _, g := range population {
		lineage = append(lineage, lineageRecord(g, "", 0, "seed"))
	}

	var scored []ScoredGenome
	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		var err error
		scored, err = m.evaluatePopulation(ctx, population)
		if err != nil {
			return RunResult{}, err
		}
		scored = m.cfg.Postprocessor.Process(scored)
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].Fitness > scored[j].Fitness
		})

		summary := summarizeGeneration(scored, gen+1)
		bestHistory = append(bestHistory, summary.BestFitness)
		diagnostics = append(diagnostics, summary)
		m.log.Info("generation evaluated",
			"generation", summary.Generation,
			"best", summary.BestFitness,
			"mean", summary.MeanFitness,
			"mean_gates", summary.MeanGateCount,
		)

		if gen == m.cfg.Generations-1 {
			break
		}
		var generationLineage []model.LineageRecord
		population, generationLineage, err = m.nextGeneration(ctx, scored, gen)
		if err != nil {
			return RunResult{}, err
		}
		lineage = append(lineage, generationLineage...)
	}

	return RunResult{
		BestByGeneration:      bestHistory,
		GenerationDiagnostics: diagnostics,
		FinalPopulation:       scored,
		Lineage:               lineage,
	}, nil
}

// evaluatePopulation scores every genome on a bounded pool. Phenotype seeds
// are drawn serially before dispatch, so scores do not depend on the worker
// count or on scheduling.
func (m *PopulationMonitor) evaluatePopulation(ctx context.Context, population []model.Genome) ([]ScoredGenome, error) {
	seeds := make([]int64, len(population))
	for i := range seeds {
		seeds[i] = m.rng.Int63()
	}

	scored := make([]ScoredGenome, len(population))
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(min(m.cfg.Workers, len(population)))
	for i := range population {
		p.Go(func(ctx context.Context) error {
			fitness, trace, err := m.evaluateGenome(ctx, population[i], seeds[i])
			if err != nil {
				return fmt.Errorf("evaluate genome %s: %w", population[i].ID, err)
			}
			scored[i] = ScoredGenome{Genome: population[i], Fitness: fitness, Trace: trace}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

func (m *PopulationMonitor) evaluateGenome(ctx context.Context, g model.Genome, seed int64) (float64, scape.Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	phenotype, err := m.cfg.Builder.Build(g, seed)
	if err != nil {
		return 0, nil, err
	}
	fitness, trace, err := m.cfg.Scape.Evaluate(ctx, phenotype)
	if err != nil {
		return 0, nil, err
	}
	return float64(fitness), trace, nil
}

func summarizeGeneration(scored []ScoredGenome, generation int) model.GenerationDiagnostics {
	if len(scored) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}

	total, length, gates := 0.0, 0, 0
	minFitness := scored[0].Fitness
	fingerprints := make(map[string]struct{}, len(scored))
	for _, item := range scored {
		total += item.Fitness
		minFitness = min(minFitness, item.Fitness)
		sig := ComputeGenomeSignature(item.Genome)
		fingerprints[sig.Fingerprint] = struct{}{}
		length += sig.Length
		gates += sig.Codons
	}

	n := float64(len(scored))
	return model.GenerationDiagnostics{
		Generation:          generation,
		BestFitness:         scored[0].Fitness,
		MeanFitness:         total / n,
		MinFitness:          minFitness,
		MeanGenomeLength:    float64(length) / n,
		MeanGateCount:       float64(gates) / n,
		DistinctFingerprint: len(fingerprints),
	}
}

func (m *PopulationMonitor) nextGeneration(ctx context.Context, ranked []ScoredGenome, generation int) ([]model.Genome, []model.LineageRecord, error) {
	next := make([]model.Genome, 0, m.cfg.PopulationSize)
	lineage := make([]model.LineageRecord, 0, m.cfg.PopulationSize)

	for i := 0; i < m.cfg.EliteCount; i++ {
		elite := cloneGenome(ranked[i].Genome)
		elite.Generation = generation + 1
		next = append(next, elite)
		lineage = append(lineage, lineageRecord(elite, ranked[i].Genome.ID, generation+1, "elite_clone"))
	}

	for len(next) < m.cfg.PopulationSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		parent, err := m.cfg.Selector.PickParent(m.rng, ranked, m.cfg.EliteCount)
		if err != nil {
			return nil, nil, err
		}
		child, record, err := m.mutateFromParent(ctx, parent, generation)
		if err != nil {
			return nil, nil, err
		}
		next = append(next, child)
		lineage = append(lineage, record)
	}
	return next, lineage, nil
}

func (m *PopulationMonitor) mutateFromParent(ctx context.Context, parent model.Genome, generation int) (model.Genome, model.LineageRecord, error) {
	count, err := m.cfg.MutationCount.MutationCount(parent, generation, m.rng)
	if err != nil {
		return model.Genome{}, model.LineageRecord{}, err
	}
	if count <= 0 {
		return model.Genome{}, model.LineageRecord{}, fmt.Errorf("invalid mutation count from policy: %d", count)
	}

	mutated := parent
	names := make([]string, 0, count)
	for step := 0; step < count; step++ {
		operator := m.chooseMutation()
		next, err := operator.Apply(ctx, mutated)
		if err != nil {
			return model.Genome{}, model.LineageRecord{}, fmt.Errorf("%s: %w", operator.Name(), err)
		}
		mutated = next
		names = append(names, operator.Name())
	}

	mutated.ID = m.cfg.NewID()
	mutated.ParentID = parent.ID
	mutated.Generation = generation + 1
	return mutated, lineageRecord(mutated, parent.ID, generation+1, strings.Join(names, "+")), nil
}

func (m *PopulationMonitor) chooseMutation() Operator {
	if len(m.cfg.MutationPolicy) == 0 {
		return m.cfg.Mutation
	}

	total := 0.0
	for _, item := range m.cfg.MutationPolicy {
		total += item.Weight
	}
	pick := m.rng.Float64() * total
	acc := 0.0
	for _, item := range m.cfg.MutationPolicy {
		acc += item.Weight
		if pick <= acc {
			return item.Operator
		}
	}
	return m.cfg.MutationPolicy[len(m.cfg.MutationPolicy)-1].Operator
}

func lineageRecord(g model.Genome, parentID string, generation int, operation string) model.LineageRecord {
	sig := ComputeGenomeSignature(g)
	return model.LineageRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: SupportedSchemaVersion, CodecVersion: SupportedCodecVersion},
		GenomeID:        g.ID,
		ParentID:        parentID,
		Generation:      generation,
		Operation:       operation,
		Fingerprint:     sig.Fingerprint,
		Length:          sig.Length,
		Codons:          sig.Codons,
	}
}
