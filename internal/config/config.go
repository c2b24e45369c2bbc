// Package config loads gatenet settings from INI, YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"gatenet/internal/evo"
	"gatenet/internal/markov"
	"gatenet/internal/storage"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

type Config struct {
	Network    NetworkConfig    `yaml:"network" json:"network"`
	Translator TranslatorConfig `yaml:"translator" json:"translator"`
	Mutation   MutationConfig   `yaml:"mutation" json:"mutation"`
	Evolution  EvolutionConfig  `yaml:"evolution" json:"evolution"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Log        LogConfig        `yaml:"log" json:"log"`
}

// NetworkConfig sizes the phenotype. A non-empty Layers list builds a deep
// network and takes precedence over Inputs/Outputs/Hidden.
type NetworkConfig struct {
	Inputs  int `ini:"inputs" yaml:"inputs" json:"inputs"`
	Outputs int `ini:"outputs" yaml:"outputs" json:"outputs"`
	Hidden  int `ini:"hidden" yaml:"hidden" json:"hidden"`
	// Layers holds "nin,nout,nhid" triples, first layer first.
	Layers     []string `ini:"layers" delim:" " yaml:"layers" json:"layers"`
	BinaryFunc string   `ini:"binary_func" yaml:"binary_func" json:"binary_func"`
	Adaptation bool     `ini:"adaptation" yaml:"adaptation" json:"adaptation"`
}

type TranslatorConfig struct {
	InputFloor   int      `ini:"input_floor" yaml:"input_floor" json:"input_floor"`
	InputLimit   int      `ini:"input_limit" yaml:"input_limit" json:"input_limit"`
	OutputFloor  int      `ini:"output_floor" yaml:"output_floor" json:"output_floor"`
	OutputLimit  int      `ini:"output_limit" yaml:"output_limit" json:"output_limit"`
	HistoryFloor int      `ini:"history_floor" yaml:"history_floor" json:"history_floor"`
	HistoryLimit int      `ini:"history_limit" yaml:"history_limit" json:"history_limit"`
	WeightSteps  int      `ini:"weight_steps" yaml:"weight_steps" json:"weight_steps"`
	GateTypes    []string `ini:"gate_types" yaml:"gate_types" json:"gate_types"`
}

type MutationConfig struct {
	Operator      string  `ini:"operator" yaml:"operator" json:"operator"`
	PerSiteRate   float64 `ini:"per_site_rate" yaml:"per_site_rate" json:"per_site_rate"`
	InsertionRate float64 `ini:"insertion_rate" yaml:"insertion_rate" json:"insertion_rate"`
	DeletionRate  float64 `ini:"deletion_rate" yaml:"deletion_rate" json:"deletion_rate"`
	ChunkMin      int     `ini:"chunk_min" yaml:"chunk_min" json:"chunk_min"`
	ChunkMax      int     `ini:"chunk_max" yaml:"chunk_max" json:"chunk_max"`
	MinSize       int     `ini:"min_size" yaml:"min_size" json:"min_size"`
	MaxSize       int     `ini:"max_size" yaml:"max_size" json:"max_size"`
	ValueMax      int     `ini:"value_max" yaml:"value_max" json:"value_max"`
	// CountPolicy is "const" or "codon_scaled".
	CountPolicy     string  `ini:"count_policy" yaml:"count_policy" json:"count_policy"`
	Count           int     `ini:"count" yaml:"count" json:"count"`
	CountMultiplier float64 `ini:"count_multiplier" yaml:"count_multiplier" json:"count_multiplier"`
	CountMax        int     `ini:"count_max" yaml:"count_max" json:"count_max"`
}

type EvolutionConfig struct {
	Scape          string `ini:"scape" yaml:"scape" json:"scape"`
	PopulationSize int    `ini:"population_size" yaml:"population_size" json:"population_size"`
	EliteCount     int    `ini:"elite_count" yaml:"elite_count" json:"elite_count"`
	Generations    int    `ini:"generations" yaml:"generations" json:"generations"`
	Workers        int    `ini:"workers" yaml:"workers" json:"workers"`
	Seed           int64  `ini:"seed" yaml:"seed" json:"seed"`
	Selector       string `ini:"selector" yaml:"selector" json:"selector"`
	PoolSize       int    `ini:"pool_size" yaml:"pool_size" json:"pool_size"`
	TournamentSize int    `ini:"tournament_size" yaml:"tournament_size" json:"tournament_size"`
	Postprocessor  string `ini:"postprocessor" yaml:"postprocessor" json:"postprocessor"`
	// AncestorSize and AncestorGates shape the random seed genomes.
	AncestorSize  int `ini:"ancestor_size" yaml:"ancestor_size" json:"ancestor_size"`
	AncestorGates int `ini:"ancestor_gates" yaml:"ancestor_gates" json:"ancestor_gates"`
}

type StorageConfig struct {
	Backend string `ini:"backend" yaml:"backend" json:"backend"`
	Path    string `ini:"path" yaml:"path" json:"path"`
}

type LogConfig struct {
	Level  string `ini:"level" yaml:"level" json:"level"`
	Format string `ini:"format" yaml:"format" json:"format"`
}

func Default() Config {
	tr := markov.DefaultTranslatorConfig()
	gateTypes := make([]string, 0, len(tr.GateTypes))
	for _, t := range tr.GateTypes {
		gateTypes = append(gateTypes, t.String())
	}
	mp := evo.DefaultMutationParams()
	return Config{
		Network: NetworkConfig{
			Inputs:     2,
			Outputs:    1,
			Hidden:     8,
			BinaryFunc: "or",
			Adaptation: true,
		},
		Translator: TranslatorConfig{
			InputFloor:   tr.InputFloor,
			InputLimit:   tr.InputLimit,
			OutputFloor:  tr.OutputFloor,
			OutputLimit:  tr.OutputLimit,
			HistoryFloor: tr.HistoryFloor,
			HistoryLimit: tr.HistoryLimit,
			WeightSteps:  tr.WeightSteps,
			GateTypes:    gateTypes,
		},
		Mutation: MutationConfig{
			Operator:      "structural",
			PerSiteRate:   mp.PerSiteRate,
			InsertionRate: mp.InsertionRate,
			DeletionRate:  mp.DeletionRate,
			ChunkMin:      mp.ChunkMin,
			ChunkMax:      mp.ChunkMax,
			MinSize:       mp.MinSize,
			MaxSize:       mp.MaxSize,
			ValueMax:      mp.ValueMax,
			CountPolicy:   "const",
			Count:         1,
		},
		Evolution: EvolutionConfig{
			Scape:          "xor",
			PopulationSize: 50,
			EliteCount:     10,
			Generations:    50,
			Workers:        4,
			Seed:           1,
			Selector:       "tournament",
			Postprocessor:  "none",
			AncestorSize:   2000,
			AncestorGates:  4,
		},
		Storage: StorageConfig{Backend: "memory"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. The format follows the file extension.
func Load(path string) (Config, error) {
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ini":
		if err := loadINI(path, &cfg); err != nil {
			return Config{}, err
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func loadINI(path string, cfg *Config) error {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", path, err)
	}
	sections := []struct {
		name   string
		target any
	}{
		{"network", &cfg.Network},
		{"translator", &cfg.Translator},
		{"mutation", &cfg.Mutation},
		{"evolution", &cfg.Evolution},
		{"storage", &cfg.Storage},
		{"log", &cfg.Log},
	}
	for _, s := range sections {
		if !file.HasSection(s.name) {
			continue
		}
		if err := file.Section(s.name).MapTo(s.target); err != nil {
			return fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := c.Network.Geometries(); err != nil {
		return err
	}
	if _, err := c.Network.Options(); err != nil {
		return err
	}
	if _, err := c.Translator.Markov(); err != nil {
		return err
	}
	if err := c.Mutation.Params().Validate(); err != nil {
		return err
	}
	if _, err := c.Mutation.MutationCountPolicy(); err != nil {
		return err
	}
	e := c.Evolution
	if e.PopulationSize <= 0 {
		return fmt.Errorf("population size must be > 0")
	}
	if e.EliteCount <= 0 || e.EliteCount > e.PopulationSize {
		return fmt.Errorf("elite count must be in [1, population size]")
	}
	if e.Generations <= 0 {
		return fmt.Errorf("generations must be > 0")
	}
	if e.AncestorSize < 2 || e.AncestorGates < 0 {
		return fmt.Errorf("invalid ancestor shape: size=%d gates=%d", e.AncestorSize, e.AncestorGates)
	}
	if _, err := evo.ParseSelector(e.Selector, e.PoolSize, e.TournamentSize); err != nil {
		return err
	}
	if _, err := evo.ParsePostprocessor(e.Postprocessor); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case "", "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("sqlite storage requires a path")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Storage.Backend)
	}
	if _, err := c.Log.NewLogger(io.Discard); err != nil {
		return err
	}
	return nil
}

// ParseLayer parses a "nin,nout,nhid" triple.
func ParseLayer(s string) (markov.Geometry, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return markov.Geometry{}, fmt.Errorf("%w: layer %q is not nin,nout,nhid", markov.ErrInvalidGeometry, s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return markov.Geometry{}, fmt.Errorf("%w: layer %q: %v", markov.ErrInvalidGeometry, s, err)
		}
		v[i] = n
	}
	geom := markov.Geometry{Inputs: v[0], Outputs: v[1], Hidden: v[2]}
	if err := geom.Validate(); err != nil {
		return markov.Geometry{}, err
	}
	return geom, nil
}

// Geometries returns the layer stack, a single layer for a flat network.
func (c NetworkConfig) Geometries() ([]markov.Geometry, error) {
	if len(c.Layers) == 0 {
		geom := markov.Geometry{Inputs: c.Inputs, Outputs: c.Outputs, Hidden: c.Hidden}
		if err := geom.Validate(); err != nil {
			return nil, err
		}
		return []markov.Geometry{geom}, nil
	}
	geoms := make([]markov.Geometry, 0, len(c.Layers))
	for i, layer := range c.Layers {
		geom, err := ParseLayer(layer)
		if err != nil {
			return nil, err
		}
		if i > 0 && geoms[i-1].Outputs != geom.Inputs {
			return nil, fmt.Errorf("%w: layer %d has %d outputs, layer %d takes %d inputs",
				markov.ErrInvalidGeometry, i-1, geoms[i-1].Outputs, i, geom.Inputs)
		}
		geoms = append(geoms, geom)
	}
	return geoms, nil
}

func (c NetworkConfig) Options() ([]markov.Option, error) {
	fn, err := markov.ParseBinaryFunc(c.BinaryFunc)
	if err != nil {
		return nil, err
	}
	return []markov.Option{markov.WithBinaryFunc(fn), markov.WithAdaptation(c.Adaptation)}, nil
}

func (c TranslatorConfig) Markov() (markov.TranslatorConfig, error) {
	types := make([]markov.GateType, 0, len(c.GateTypes))
	for _, name := range c.GateTypes {
		t, err := markov.ParseGateType(strings.TrimSpace(name))
		if err != nil {
			return markov.TranslatorConfig{}, err
		}
		types = append(types, t)
	}
	cfg := markov.TranslatorConfig{
		InputFloor:   c.InputFloor,
		InputLimit:   c.InputLimit,
		OutputFloor:  c.OutputFloor,
		OutputLimit:  c.OutputLimit,
		HistoryFloor: c.HistoryFloor,
		HistoryLimit: c.HistoryLimit,
		WeightSteps:  c.WeightSteps,
		GateTypes:    types,
	}
	if err := cfg.Validate(); err != nil {
		return markov.TranslatorConfig{}, err
	}
	return cfg, nil
}

func (c MutationConfig) Params() evo.MutationParams {
	return evo.MutationParams{
		PerSiteRate:   c.PerSiteRate,
		InsertionRate: c.InsertionRate,
		DeletionRate:  c.DeletionRate,
		ChunkMin:      c.ChunkMin,
		ChunkMax:      c.ChunkMax,
		MinSize:       c.MinSize,
		MaxSize:       c.MaxSize,
		ValueMax:      c.ValueMax,
	}
}

// BuildOperator resolves the configured operator from the evo registry.
func (c MutationConfig) BuildOperator(rng *rand.Rand) (evo.Operator, error) {
	name := c.Operator
	if name == "" {
		name = "structural"
	}
	return evo.BuildOperator(name, rng, c.Params())
}

func (c MutationConfig) MutationCountPolicy() (evo.MutationCountPolicy, error) {
	switch c.CountPolicy {
	case "", "const":
		count := c.Count
		if count == 0 {
			count = 1
		}
		if count < 0 {
			return nil, fmt.Errorf("mutation count must be > 0, got %d", count)
		}
		return evo.ConstMutationCount{Count: count}, nil
	case "codon_scaled":
		if c.CountMultiplier <= 0 {
			return nil, fmt.Errorf("codon multiplier must be > 0, got %f", c.CountMultiplier)
		}
		return evo.CodonScaledMutationCount{Multiplier: c.CountMultiplier, MaxCount: c.CountMax}, nil
	default:
		return nil, fmt.Errorf("unsupported mutation count policy: %s", c.CountPolicy)
	}
}

// OpenStore builds the configured store. Callers still call Init.
func (c StorageConfig) OpenStore() (storage.Store, error) {
	return storage.NewStore(c.Backend, c.Path)
}

func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	return level, nil
}

// NewLogger builds a text or JSON slog logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch c.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", c.Format)
	}
}
