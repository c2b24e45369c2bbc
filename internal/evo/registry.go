package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"gatenet/internal/model"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var (
	ErrOperatorExists       = errors.New("operator already registered")
	ErrOperatorNotFound     = errors.New("operator not found")
	ErrOperatorIncompatible = errors.New("operator incompatible with genome")
	ErrVersionMismatch      = errors.New("operator version mismatch")
)

// OperatorFactory builds an operator bound to a random source.
type OperatorFactory func(rng *rand.Rand, params MutationParams) (Operator, error)

type CompatibilityFn func(genome model.Genome) error

type OperatorSpec struct {
	Name          string
	Factory       OperatorFactory
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type registeredOperator struct {
	factory       OperatorFactory
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]registeredOperator
}{
	m: builtinOperators(),
}

func builtinOperators() map[string]registeredOperator {
	builtin := func(f OperatorFactory) registeredOperator {
		return registeredOperator{
			factory:       f,
			schemaVersion: SupportedSchemaVersion,
			codecVersion:  SupportedCodecVersion,
			compatible:    requireValues,
		}
	}
	return map[string]registeredOperator{
		"per_site": builtin(func(rng *rand.Rand, p MutationParams) (Operator, error) {
			return &PerSite{Rand: rng, Rate: p.PerSiteRate, ValueMax: p.ValueMax}, nil
		}),
		"insertion": builtin(func(rng *rand.Rand, p MutationParams) (Operator, error) {
			return &Insertion{Rand: rng, Rate: p.InsertionRate, ChunkMin: p.ChunkMin, ChunkMax: p.ChunkMax, MaxSize: p.MaxSize}, nil
		}),
		"deletion": builtin(func(rng *rand.Rand, p MutationParams) (Operator, error) {
			return &Deletion{Rand: rng, Rate: p.DeletionRate, ChunkMin: p.ChunkMin, ChunkMax: p.ChunkMax, MinSize: p.MinSize}, nil
		}),
		"structural": builtin(func(rng *rand.Rand, p MutationParams) (Operator, error) {
			return NewStructural(rng, p), nil
		}),
	}
}

func requireValues(genome model.Genome) error {
	if len(genome.Values) == 0 {
		return errors.New("genome has no values")
	}
	return nil
}

// RegisterOperator registers an operator factory with default schema and codec versions.
func RegisterOperator(name string, factory OperatorFactory) error {
	return RegisterOperatorWithSpec(OperatorSpec{
		Name:          name,
		Factory:       factory,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

// RegisterOperatorWithSpec registers an operator factory with explicit versioning and compatibility metadata.
func RegisterOperatorWithSpec(spec OperatorSpec) error {
	if spec.Name == "" {
		return errors.New("operator name is required")
	}
	if spec.Factory == nil {
		return errors.New("operator factory is required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, spec.Name)
	}
	operatorRegistry.m[spec.Name] = registeredOperator{
		factory:       spec.Factory,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

// ResolveOperator returns a registered factory only if the record versions
// and compatibility checks pass for genome.
func ResolveOperator(name string, genome model.Genome) (OperatorFactory, error) {
	operatorRegistry.mu.RLock()
	entry, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	if genome.SchemaVersion != entry.schemaVersion || genome.CodecVersion != entry.codecVersion {
		return nil, fmt.Errorf("%w: operator=%s expected(schema=%d codec=%d) got(schema=%d codec=%d)",
			ErrVersionMismatch,
			name,
			entry.schemaVersion,
			entry.codecVersion,
			genome.SchemaVersion,
			genome.CodecVersion,
		)
	}
	if entry.compatible != nil {
		if err := entry.compatible(genome); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOperatorIncompatible, name, err)
		}
	}
	return entry.factory, nil
}

// BuildOperator constructs the named operator without a compatibility check.
func BuildOperator(name string, rng *rand.Rand, params MutationParams) (Operator, error) {
	operatorRegistry.mu.RLock()
	entry, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return entry.factory(rng, params)
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetOperatorRegistryForTests() {
	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()
	operatorRegistry.m = builtinOperators()
}
