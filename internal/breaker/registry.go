package breaker

import (
	"sync"

	"github.com/sheetwise/gateway/internal/observability"
)

// Registry manages one circuit breaker per named dependency so that a
// failing service trips only its own circuit.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker

	config  *Config
	logger  observability.Logger
	metrics *Metrics
}

// NewRegistry creates a Registry that stamps out breakers with the
// given config.
func NewRegistry(config *Config, logger observability.Logger, metrics *Metrics) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Get returns the breaker for the named dependency, creating it on
// first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}

	cfg := *r.config
	b = New(name, &cfg, WithLogger(r.logger), WithMetrics(r.metrics))
	r.breakers[name] = b
	return b
}

// States returns a snapshot of every registered breaker's state, keyed
// by dependency name.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.State()
	}
	return states
}
