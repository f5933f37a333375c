package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Summarizer enriches a document's description from its title and body.
// Implementations live outside this package (pkg/llmhook) to avoid a
// dependency cycle; Registry only knows the shape.
type Summarizer interface {
	Summarize(ctx context.Context, title, body string) (string, error)
}

// SummarizerFactory constructs a [Summarizer] from a [SummarizerConfig].
type SummarizerFactory func(SummarizerConfig) (Summarizer, error)

// Registry maps provider names to their constructor functions. It mirrors
// the teacher's provider registry (internal/config/registry.go), reduced to
// the one provider family kgsearchd's config currently selects by name.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	summarizers map[string]SummarizerFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{summarizers: make(map[string]SummarizerFactory)}
}

// RegisterSummarizer registers a summarizer factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSummarizer(name string, factory SummarizerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summarizers[name] = factory
}

// CreateSummarizer instantiates a summarizer using the factory registered
// under cfg.Provider. Returns [ErrProviderNotRegistered] if no factory has
// been registered for that name, and nil with no error if cfg.Provider is
// empty (the hook is simply disabled).
func (r *Registry) CreateSummarizer(cfg SummarizerConfig) (Summarizer, error) {
	if cfg.Provider == "" {
		return nil, nil
	}
	r.mu.RLock()
	factory, ok := r.summarizers[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: summarizer/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}
