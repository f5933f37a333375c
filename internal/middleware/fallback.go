package middleware

import (
	"context"

	"github.com/terraphim/kgsearchd/internal/resilience"
	"github.com/terraphim/kgsearchd/internal/types"
)

// FallbackIndexer wraps a primary [Indexer] and zero or more mirror indexers
// of the same haystack (e.g. a primary Jira Cloud endpoint and a read
// replica) behind one [resilience.FallbackGroup]. Adapted from the
// teacher's LLMFallback, substituting Indexer for llm.Provider: the same
// "try primary, fall through healthy mirrors in order" behaviour applies
// here to a haystack that becomes unreachable mid-outage.
type FallbackIndexer struct {
	group *resilience.FallbackGroup[Indexer]
}

var _ Indexer = (*FallbackIndexer)(nil)

// NewFallbackIndexer creates a FallbackIndexer with primary as the preferred
// indexer, named primaryName for log output and circuit-breaker identity.
func NewFallbackIndexer(primary Indexer, primaryName string, cfg resilience.FallbackConfig) *FallbackIndexer {
	return &FallbackIndexer{group: resilience.NewFallbackGroup(primary, primaryName, cfg)}
}

// AddMirror registers an additional indexer as a fallback, tried only after
// every higher-priority entry has failed or tripped its circuit breaker.
func (f *FallbackIndexer) AddMirror(name string, indexer Indexer) {
	f.group.AddFallback(name, indexer)
}

// Index tries each registered indexer in order, returning the first
// successful result.
func (f *FallbackIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	return resilience.ExecuteWithResult(f.group, func(idx Indexer) (types.Index, error) {
		return idx.Index(ctx, needle, haystack)
	})
}
