package scape

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrScapeExists   = errors.New("scape already registered")
	ErrScapeNotFound = errors.New("scape not found")
)

type Factory func() Scape

var scapeRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: builtinScapes(),
}

func builtinScapes() map[string]Factory {
	return map[string]Factory{
		"xor":  func() Scape { return XORScape{} },
		"echo": func() Scape { return EchoScape{Width: 2} },
		"dtm":  func() Scape { return DTMScape{} },
	}
}

func RegisterScape(name string, factory Factory) error {
	if name == "" {
		return errors.New("scape name is required")
	}
	if factory == nil {
		return errors.New("scape factory is required")
	}

	scapeRegistry.mu.Lock()
	defer scapeRegistry.mu.Unlock()

	if _, exists := scapeRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrScapeExists, name)
	}
	scapeRegistry.m[name] = factory
	return nil
}

func ResolveScape(name string) (Scape, error) {
	scapeRegistry.mu.RLock()
	factory, ok := scapeRegistry.m[name]
	scapeRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrScapeNotFound, name)
	}
	return factory(), nil
}

func ListScapes() []string {
	scapeRegistry.mu.RLock()
	defer scapeRegistry.mu.RUnlock()

	names := make([]string, 0, len(scapeRegistry.m))
	for name := range scapeRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetScapeRegistryForTests() {
	scapeRegistry.mu.Lock()
	defer scapeRegistry.mu.Unlock()
	scapeRegistry.m = builtinScapes()
}
