package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Factory builds an unconnected adapter.
type Factory func(*slog.Logger) Adapter

// ErrNoType is returned when the config names no adapter.
var ErrNoType = errors.New("adapter type not specified")

var factories = struct {
	sync.RWMutex
	byName map[string]Factory
}{byName: map[string]Factory{}}

// Register adds an adapter factory. Adapter packages call it from init.
// Names are case-insensitive; registering a name twice replaces the factory.
func Register(name string, f Factory) {
	factories.Lock()
	defer factories.Unlock()
	factories.byName[strings.ToLower(name)] = f
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	factories.RLock()
	defer factories.RUnlock()
	f, ok := factories.byName[strings.ToLower(name)]
	return f, ok
}

// IsRegistered reports whether an adapter named name exists.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListAdapters returns the registered names, sorted.
func ListAdapters() []string {
	factories.RLock()
	defer factories.RUnlock()
	return slices.Sorted(maps.Keys(factories.byName))
}

// NewAdapter builds the adapter cfg.Type names without connecting it. A nil
// logger is passed through to the factory.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoType
	}
	f, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return f(logger), nil
}

// Open builds and connects the adapter cfg.Type names.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Adapter, error) {
	a, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Type, err)
	}
	return a, nil
}

// UnknownAdapterError is returned for a database.type nothing registered.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q (available: %s); check database.type in countymap.yaml",
		e.Type, strings.Join(e.Available, ", "))
}
