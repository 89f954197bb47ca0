package strategy

import (
	"fmt"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
)

// Builder constructs a strategy from its configuration.
type Builder func(cfg domain.StrategyConfig) (Strategy, error)

// Registry maps strategy type names to builders. It is an explicit object so
// callers can register custom strategies without touching package globals.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// DefaultRegistry returns a registry with the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(domain.StrategyTypeSMACross, buildSMACross)
	r.Register(domain.StrategyTypeMomentum, buildMomentum)
	return r
}

// Register adds or replaces a builder for the given strategy type.
func (r *Registry) Register(strategyType string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[strategyType] = b
}

// Build constructs a strategy from config, returning ErrInvalidStrategy for
// unknown types and ErrParameterOutOfRange for invalid parameters.
func (r *Registry) Build(cfg domain.StrategyConfig) (Strategy, error) {
	r.mu.RLock()
	b, ok := r.builders[cfg.StrategyType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy type %q", domain.ErrInvalidStrategy, cfg.StrategyType)
	}
	return b(cfg)
}

// Types returns the registered strategy type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for t := range r.builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
