// Package middleware implements the pluggable indexing layer that turns a
// role's configured [types.Haystack] list into a merged [types.Index],
// fanning out concurrently and tolerating individual haystack failures.
//
// Grounded on the original implementation's IndexMiddleware trait
// (terraphim_middleware::indexer): each indexer receives the search needle
// and its haystack and returns an Index; a haystack that fails to construct
// or query logs the error and contributes an empty index rather than
// aborting the whole search.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/terraphim/kgsearchd/internal/resilience"
	"github.com/terraphim/kgsearchd/internal/types"
)

// breakerConfig is the [resilience.FallbackConfig] used when wrapping a
// haystack's mirrors; the per-entry circuit breaker name is overwritten by
// [resilience.FallbackGroup] itself, so only the defaults matter here.
var breakerConfig = resilience.FallbackConfig{}

// Indexer fetches documents matching needle from a single haystack.
type Indexer interface {
	Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error)
}

// Factory constructs an [Indexer] for a haystack's service type.
type Factory func(types.Haystack) (Indexer, error)

// Dispatcher routes haystacks to their registered [Indexer] factory and fans
// out searches across all of a role's haystacks concurrently, using a
// per-haystack circuit breaker so a chronically failing source is skipped
// fast instead of retried on every search.
type Dispatcher struct {
	mu        sync.RWMutex
	factories map[types.ServiceType]Factory
	breakers  map[string]*resilience.CircuitBreaker
	// MaxConcurrency bounds simultaneous haystack fetches. Zero means the
	// default bound of 8.
	MaxConcurrency int
}

// NewDispatcher returns a Dispatcher with the built-in indexers registered:
// ripgrep, atomic, clickup, jira, discourse, gmail, jmap, mcp.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		factories: map[types.ServiceType]Factory{},
		breakers:  map[string]*resilience.CircuitBreaker{},
	}
	d.Register(types.ServiceRipgrep, func(h types.Haystack) (Indexer, error) { return NewRipgrepIndexer(), nil })
	d.Register(types.ServiceAtomic, func(h types.Haystack) (Indexer, error) { return NewAtomicIndexer(), nil })
	d.Register(types.ServiceClickUp, func(h types.Haystack) (Indexer, error) { return NewClickUpIndexer(), nil })
	d.Register(types.ServiceJira, func(h types.Haystack) (Indexer, error) { return NewJiraIndexer(), nil })
	d.Register(types.ServiceDiscourse, func(h types.Haystack) (Indexer, error) { return NewDiscourseIndexer(), nil })
	d.Register(types.ServiceGmail, func(h types.Haystack) (Indexer, error) { return NewGmailIndexer(), nil })
	d.Register(types.ServiceJMAP, func(h types.Haystack) (Indexer, error) { return NewJMAPIndexer(), nil })
	d.Register(types.ServiceMCP, func(h types.Haystack) (Indexer, error) { return NewMCPIndexer(h) })
	return d
}

// Register installs or replaces the factory used for service.
func (d *Dispatcher) Register(service types.ServiceType, f Factory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.factories[service] = f
}

func (d *Dispatcher) breaker(name string) *resilience.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.breakers[name]
	if !ok {
		b = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: name})
		d.breakers[name] = b
	}
	return b
}

// Status reports the outcome of indexing a single haystack, used for
// partial-failure-tolerant fan-out reporting.
type Status struct {
	Haystack types.Haystack
	Err      error
}

// SearchHaystacks fans out needle across every haystack concurrently and
// merges the results into one [types.Index]. A haystack whose factory is
// unregistered, whose circuit breaker is open, or whose Index call fails
// contributes nothing and is recorded in the returned statuses slice — it
// never aborts the other haystacks.
func (d *Dispatcher) SearchHaystacks(ctx context.Context, needle string, haystacks []types.Haystack) (types.Index, []Status) {
	results := make([]types.Index, len(haystacks))
	statuses := make([]Status, len(haystacks))

	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, d.effectiveConcurrency())

	for i, h := range haystacks {
		i, h := i, h
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			idx, err := d.indexOne(egCtx, needle, h)
			statuses[i] = Status{Haystack: h, Err: err}
			if err != nil {
				slog.Warn("haystack indexing failed; continuing without it",
					"location", h.Location, "service", h.Service, "err", err)
				return nil
			}
			results[i] = idx
			return nil
		})
	}
	_ = eg.Wait() // errors are captured per-haystack in statuses, never propagated

	// Merged sequentially, in haystack-declaration order, so the result is
	// deterministic regardless of which goroutine finished first.
	merged := types.NewIndex()
	for i, idx := range results {
		if idx.OrderedMap == nil {
			continue
		}
		h := haystacks[i]
		for pair := idx.Oldest(); pair != nil; pair = pair.Next() {
			doc := pair.Value
			doc.SourceHaystack = h.Location
			merged.Set(pair.Key, doc)
		}
	}

	return merged, statuses
}

func (d *Dispatcher) effectiveConcurrency() int {
	if d.MaxConcurrency > 0 {
		return d.MaxConcurrency
	}
	return 8
}

// boundIndexer pins an [Indexer] to a fixed haystack, ignoring whatever
// haystack is passed to Index. Used so a mirror indexer inside a
// [FallbackIndexer] always searches its own location, even though
// [FallbackIndexer.Index] calls every entry with the same arguments.
type boundIndexer struct {
	indexer  Indexer
	haystack types.Haystack
}

func (b boundIndexer) Index(ctx context.Context, needle string, _ types.Haystack) (types.Index, error) {
	return b.indexer.Index(ctx, needle, b.haystack)
}

// buildIndexer constructs the registered [Indexer] for h.Service against h.
func (d *Dispatcher) buildIndexer(h types.Haystack) (Indexer, error) {
	d.mu.RLock()
	factory, ok := d.factories[h.Service]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("middleware: no indexer registered for service %q", h.Service)
	}
	indexer, err := factory(h)
	if err != nil {
		return nil, fmt.Errorf("middleware: construct indexer for %q: %w", h.Location, err)
	}
	return indexer, nil
}

func (d *Dispatcher) indexOne(ctx context.Context, needle string, h types.Haystack) (types.Index, error) {
	indexer, err := d.buildIndexer(h)
	if err != nil {
		return types.Index{}, err
	}

	if len(h.Mirrors) > 0 {
		fb := NewFallbackIndexer(boundIndexer{indexer, h}, h.Location, breakerConfig)
		for _, mirror := range h.Mirrors {
			mirrorHaystack := h
			mirrorHaystack.Location = mirror
			mirrorHaystack.Mirrors = nil
			mirrorIndexer, err := d.buildIndexer(mirrorHaystack)
			if err != nil {
				slog.Warn("mirror indexer construction failed; skipping mirror",
					"location", mirror, "service", h.Service, "err", err)
				continue
			}
			fb.AddMirror(mirror, boundIndexer{mirrorIndexer, mirrorHaystack})
		}
		indexer = fb
	}

	breaker := d.breaker(h.Location)
	var idx types.Index
	err = breaker.Execute(func() error {
		var innerErr error
		idx, innerErr = indexer.Index(ctx, needle, h)
		return innerErr
	})
	return idx, err
}
