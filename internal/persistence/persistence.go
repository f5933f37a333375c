// Package persistence implements the tiered key/value storage layer used to
// cache thesauri, role graphs, and documents: a ranked set of named backend
// profiles (in-memory, local filesystem, embedded B-tree, S3-compatible),
// probed for latency so reads prefer the fastest available profile while
// writes can target all profiles or one specific profile.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/terraphim/kgsearchd/internal/types"
)

// ErrNotFound is returned by [Store.Load] when key is absent from every
// profile that was tried.
var ErrNotFound = errors.New("persistence: key not found")

// Persistable is implemented by anything storable through a [Store]. GetKey
// returns the canonical storage key — callers are expected to canonicalize
// human-facing identifiers with [types.Canonicalize] before building it.
type Persistable interface {
	GetKey() string
}

// Backend is a single storage tier. Implementations: [NewMemoryBackend],
// [NewFSBackend], [NewBoltBackend], [NewS3Backend].
type Backend interface {
	Name() string
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, bool, error)
	// Probe measures round-trip latency for a trivial operation, used to
	// rank backends fastest-first. Implementations should be cheap and safe
	// to call repeatedly.
	Probe(ctx context.Context) time.Duration
	Close() error
}

// Store fans reads and writes out across a named set of [Backend] profiles.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]Backend
	// ranked caches the profile names ordered fastest-probe-first; rebuilt
	// by RefreshRanking.
	ranked []string
}

// NewStore returns an empty Store. Add profiles with [Store.AddProfile].
func NewStore() *Store {
	return &Store{profiles: map[string]Backend{}}
}

// AddProfile registers backend under name, overwriting any previous
// registration. Callers should call [Store.RefreshRanking] after adding
// profiles and periodically thereafter, since backend latency can drift.
func (s *Store) AddProfile(name string, backend Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[name] = backend
	s.ranked = append(s.ranked, name)
}

// RefreshRanking probes every profile and reorders reads fastest-first.
// Profiles that fail to respond within timeout are ranked last (their order
// among themselves is not defined), rather than excluded — a slow backend is still worth
// trying if faster ones miss.
func (s *Store) RefreshRanking(ctx context.Context, timeout time.Duration) {
	s.mu.RLock()
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	backends := make(map[string]Backend, len(names))
	for _, n := range names {
		backends[n] = s.profiles[n]
	}
	s.mu.RUnlock()

	type probed struct {
		name    string
		latency time.Duration
		ok      bool
	}
	results := make([]probed, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			done := make(chan time.Duration, 1)
			go func() { done <- backends[name].Probe(pctx) }()
			select {
			case lat := <-done:
				results[i] = probed{name: name, latency: lat, ok: true}
			case <-pctx.Done():
				results[i] = probed{name: name, latency: timeout, ok: false}
			}
		}(i, name)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].ok != results[j].ok {
			return results[i].ok
		}
		return results[i].latency < results[j].latency
	})

	ranked := make([]string, len(results))
	for i, r := range results {
		ranked[i] = r.name
	}

	s.mu.Lock()
	s.ranked = ranked
	s.mu.Unlock()
}

// SaveToAll writes p to every registered profile. Errors from individual
// profiles are joined and returned, but a write failure on one profile does
// not prevent the others from being attempted.
func (s *Store) SaveToAll(ctx context.Context, p Persistable, data []byte) error {
	s.mu.RLock()
	backends := make([]Backend, 0, len(s.profiles))
	for _, b := range s.profiles {
		backends = append(backends, b)
	}
	s.mu.RUnlock()

	var errs []error
	for _, b := range backends {
		if err := b.Write(ctx, p.GetKey(), data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SaveToProfile writes p only to the named profile.
func (s *Store) SaveToProfile(ctx context.Context, profile string, p Persistable, data []byte) error {
	s.mu.RLock()
	b, ok := s.profiles[profile]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("persistence: profile %q not registered", profile)
	}
	return b.Write(ctx, p.GetKey(), data)
}

// Load reads key from the fastest-ranked profile first, falling through to
// slower profiles on a miss. Returns [ErrNotFound] if no profile has key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	order := s.ranked
	if len(order) == 0 {
		for name := range s.profiles {
			order = append(order, name)
		}
	}
	backends := make([]Backend, 0, len(order))
	for _, name := range order {
		if b, ok := s.profiles[name]; ok {
			backends = append(backends, b)
		}
	}
	s.mu.RUnlock()

	for _, b := range backends {
		data, ok, err := b.Read(ctx, key)
		if err != nil {
			continue
		}
		if ok {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Close closes every registered profile, joining any close errors.
func (s *Store) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var errs []error
	for _, b := range s.profiles {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Key builds a canonical persistence key from a record kind and a
// human-facing name, e.g. Key("thesaurus", "Software Engineer").
func Key(kind, name string) string {
	return kind + "_" + types.Canonicalize(name)
}
