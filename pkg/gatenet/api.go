package gatenet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"gatenet/internal/config"
	"gatenet/internal/evo"
	"gatenet/internal/genome"
	"gatenet/internal/markov"
	"gatenet/internal/model"
	"gatenet/internal/scape"
	"gatenet/internal/storage"
)

type Options struct {
	// Config defaults to config.Default().
	Config *config.Config
	// StoreKind and DBPath override the configured storage when set.
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	cfg   config.Config
	store storage.Store
	log   *slog.Logger

	mu          sync.Mutex
	initialized bool
}

type RunRequest struct {
	RunID       string
	Scape       string
	Population  int
	Generations int
	Seed        int64
	Workers     int
}

type RunSummary struct {
	RunID            string
	BestGenomeID     string
	BestFitness      float64
	BestByGeneration []float64
}

// GenomeSource names a stored genome or carries raw values.
type GenomeSource struct {
	GenomeID string
	Values   []int
}

type GateInfo struct {
	Layer   int
	Index   int
	Kind    string
	Inputs  []int
	Outputs []int
}

type Translation struct {
	GenomeID string
	Length   int
	Layers   []markov.Geometry
	Gates    []GateInfo
}

type ExportRequest struct {
	GenomeSource
	// Layer selects which network of a deep stack to render.
	Layer   int
	Reduced bool
	Name    string
}

func New(opts Options) (*Client, error) {
	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if opts.StoreKind != "" {
		cfg.Storage.Backend = opts.StoreKind
	}
	if opts.DBPath != "" {
		cfg.Storage.Path = opts.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := cfg.Storage.OpenStore()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:   cfg,
		store: store,
		log:   logger.With("component", "gatenet"),
	}, nil
}

func (c *Client) Config() config.Config {
	return c.cfg
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureInit(ctx)
}

// Run evolves a random ancestral population against a scape and persists the
// run, its final population, fitness history, diagnostics and lineage.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}
	evoCfg := c.cfg.Evolution
	if req.Scape == "" {
		req.Scape = evoCfg.Scape
	}
	if req.Population <= 0 {
		req.Population = evoCfg.PopulationSize
	}
	if req.Generations <= 0 {
		req.Generations = evoCfg.Generations
	}
	if req.Workers <= 0 {
		req.Workers = evoCfg.Workers
	}
	if req.Seed == 0 {
		req.Seed = evoCfg.Seed
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	eliteCount := min(evoCfg.EliteCount, req.Population)

	sc, err := scape.ResolveScape(req.Scape)
	if err != nil {
		return RunSummary{}, err
	}
	builder, trCfg, err := c.builder()
	if err != nil {
		return RunSummary{}, err
	}
	if err := builder.CheckShape(sc); err != nil {
		return RunSummary{}, err
	}
	operator, err := c.cfg.Mutation.BuildOperator(rand.New(rand.NewSource(req.Seed + 1)))
	if err != nil {
		return RunSummary{}, err
	}
	countPolicy, err := c.cfg.Mutation.MutationCountPolicy()
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := evo.ParseSelector(evoCfg.Selector, evoCfg.PoolSize, evoCfg.TournamentSize)
	if err != nil {
		return RunSummary{}, err
	}
	postprocessor, err := evo.ParsePostprocessor(evoCfg.Postprocessor)
	if err != nil {
		return RunSummary{}, err
	}

	initial, err := c.ancestors(req.Population, req.Seed, trCfg.GateTypes)
	if err != nil {
		return RunSummary{}, err
	}

	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Scape:          sc,
		Builder:        builder,
		Mutation:       operator,
		MutationCount:  countPolicy,
		Selector:       selector,
		Postprocessor:  postprocessor,
		PopulationSize: req.Population,
		EliteCount:     eliteCount,
		Generations:    req.Generations,
		Workers:        req.Workers,
		Seed:           req.Seed,
		Logger:         c.log.With("run_id", req.RunID),
	})
	if err != nil {
		return RunSummary{}, err
	}
	result, err := monitor.Run(ctx, initial)
	if err != nil {
		return RunSummary{}, err
	}
	best, ok := result.Best()
	if !ok {
		return RunSummary{}, errors.New("run produced no genomes")
	}

	if err := c.persistRun(ctx, req, builder, best, result); err != nil {
		return RunSummary{}, err
	}
	c.log.Info("run complete", "run_id", req.RunID, "scape", req.Scape, "best", best.Fitness, "best_genome", best.Genome.ID)

	return RunSummary{
		RunID:            req.RunID,
		BestGenomeID:     best.Genome.ID,
		BestFitness:      best.Fitness,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
	}, nil
}

func (c *Client) persistRun(ctx context.Context, req RunRequest, builder *evo.NetworkBuilder, best evo.ScoredGenome, result evo.RunResult) error {
	layers := make([]model.Layer, 0, len(builder.Layers))
	for _, geom := range builder.Layers {
		layers = append(layers, model.Layer{Inputs: geom.Inputs, Outputs: geom.Outputs, Hidden: geom.Hidden})
	}
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              req.RunID,
		Scape:           req.Scape,
		Seed:            req.Seed,
		PopulationSize:  req.Population,
		Generations:     req.Generations,
		Layers:          layers,
		BestGenomeID:    best.Genome.ID,
		BestFitness:     best.Fitness,
	}); err != nil {
		return err
	}
	for _, item := range result.FinalPopulation {
		if err := c.store.SaveGenome(ctx, item.Genome); err != nil {
			return err
		}
	}
	if err := c.store.SaveFitnessHistory(ctx, req.RunID, result.BestByGeneration); err != nil {
		return err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, req.RunID, result.GenerationDiagnostics); err != nil {
		return err
	}
	return c.store.SaveLineage(ctx, req.RunID, result.Lineage)
}

// Translate decodes a genome with the configured translator and reports the
// gates of every layer.
func (c *Client) Translate(ctx context.Context, src GenomeSource) (Translation, error) {
	g, err := c.resolveGenome(ctx, src)
	if err != nil {
		return Translation{}, err
	}
	networks, err := c.translate(g)
	if err != nil {
		return Translation{}, err
	}

	out := Translation{GenomeID: g.ID, Length: len(g.Values)}
	for layer, net := range networks {
		out.Layers = append(out.Layers, net.Geometry())
		for i, gate := range net.Gates() {
			out.Gates = append(out.Gates, GateInfo{
				Layer:   layer,
				Index:   i,
				Kind:    gate.Kind().String(),
				Inputs:  append([]int(nil), gate.Inputs()...),
				Outputs: append([]int(nil), gate.Outputs()...),
			})
		}
	}
	return out, nil
}

// Export renders one layer of a translated genome as Graphviz DOT.
func (c *Client) Export(ctx context.Context, req ExportRequest) ([]byte, error) {
	g, err := c.resolveGenome(ctx, req.GenomeSource)
	if err != nil {
		return nil, err
	}
	networks, err := c.translate(g)
	if err != nil {
		return nil, err
	}
	if req.Layer < 0 || req.Layer >= len(networks) {
		return nil, fmt.Errorf("layer %d out of range [0,%d)", req.Layer, len(networks))
	}
	gg := markov.Graph(networks[req.Layer])
	if req.Reduced {
		gg = gg.Reduced()
	}
	name := req.Name
	if name == "" {
		name = "gatenet"
	}
	return gg.MarshalDOT(name)
}

func (c *Client) Genome(ctx context.Context, id string) (model.Genome, error) {
	if err := c.ensureInit(ctx); err != nil {
		return model.Genome{}, err
	}
	g, ok, err := c.store.GetGenome(ctx, id)
	if err != nil {
		return model.Genome{}, err
	}
	if !ok {
		return model.Genome{}, fmt.Errorf("genome not found: %s", id)
	}
	return g, nil
}

func (c *Client) Genomes(ctx context.Context) ([]model.Genome, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	return c.store.ListGenomes(ctx)
}

func (c *Client) RunRecord(ctx context.Context, runID string) (model.RunRecord, error) {
	if err := c.ensureInit(ctx); err != nil {
		return model.RunRecord{}, err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

func (c *Client) FitnessHistory(ctx context.Context, runID string) ([]float64, error) {
	if runID == "" {
		return nil, errors.New("fitness history requires run id")
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	return history, nil
}

func (c *Client) Diagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	return diagnostics, nil
}

func (c *Client) Lineage(ctx context.Context, runID string) ([]model.LineageRecord, error) {
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	return lineage, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) builder() (*evo.NetworkBuilder, markov.TranslatorConfig, error) {
	trCfg, err := c.cfg.Translator.Markov()
	if err != nil {
		return nil, markov.TranslatorConfig{}, err
	}
	tr, err := markov.NewTranslator(trCfg)
	if err != nil {
		return nil, markov.TranslatorConfig{}, err
	}
	geoms, err := c.cfg.Network.Geometries()
	if err != nil {
		return nil, markov.TranslatorConfig{}, err
	}
	opts, err := c.cfg.Network.Options()
	if err != nil {
		return nil, markov.TranslatorConfig{}, err
	}
	builder, err := evo.NewNetworkBuilder(tr, geoms, opts...)
	if err != nil {
		return nil, markov.TranslatorConfig{}, err
	}
	return builder, trCfg, nil
}

// translate returns the networks of g, one per configured layer.
func (c *Client) translate(g model.Genome) ([]*markov.Network, error) {
	builder, _, err := c.builder()
	if err != nil {
		return nil, err
	}
	if len(builder.Layers) == 1 {
		net, err := builder.BuildNetwork(g, c.cfg.Evolution.Seed)
		if err != nil {
			return nil, err
		}
		return []*markov.Network{net}, nil
	}
	deep, err := builder.BuildDeep(g, c.cfg.Evolution.Seed)
	if err != nil {
		return nil, err
	}
	networks := make([]*markov.Network, deep.NumLayers())
	for i := range networks {
		networks[i] = deep.Layer(i)
	}
	return networks, nil
}

func (c *Client) resolveGenome(ctx context.Context, src GenomeSource) (model.Genome, error) {
	switch {
	case src.GenomeID != "" && len(src.Values) > 0:
		return model.Genome{}, errors.New("use either genome id or values")
	case src.GenomeID != "":
		return c.Genome(ctx, src.GenomeID)
	case len(src.Values) > 0:
		return model.Genome{VersionedRecord: storage.Versioned(), Values: append([]int(nil), src.Values...)}, nil
	default:
		return model.Genome{}, errors.New("genome id or values are required")
	}
}

func (c *Client) ancestors(n int, seed int64, types []markov.GateType) ([]model.Genome, error) {
	codons := make([]int, len(types))
	for i, t := range types {
		codons[i] = int(t)
	}
	rng := rand.New(rand.NewSource(seed))
	evoCfg := c.cfg.Evolution
	population := make([]model.Genome, n)
	for i := range population {
		values, err := genome.Ancestor(rng, evoCfg.AncestorSize, evoCfg.AncestorGates, codons, c.cfg.Mutation.ValueMax)
		if err != nil {
			return nil, err
		}
		population[i] = model.Genome{
			VersionedRecord: storage.Versioned(),
			ID:              uuid.NewString(),
			Values:          values,
		}
	}
	return population, nil
}
