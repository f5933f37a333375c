package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/terraphim/kgsearchd/internal/automata"
	"github.com/terraphim/kgsearchd/internal/persistence"
	"github.com/terraphim/kgsearchd/internal/rolegraph"
	"github.com/terraphim/kgsearchd/internal/thesaurus"
	"github.com/terraphim/kgsearchd/internal/types"
)

// State is the process-wide configuration state: the hot-reloaded [Config]
// plus, per role, a cached [types.Thesaurus] and [rolegraph.RoleGraph] built
// from it. Building a role's knowledge graph is expensive (walks a Logseq
// directory or fetches a remote thesaurus, then indexes every edge), so
// State builds it once and rebuilds only the roles whose thesaurus source
// actually changed on reload — per §4.8's hot-reload semantics.
//
// When a [persistence.Store] is installed via [State.SetStore], a cold cache
// miss checks the store before rebuilding from source, and a freshly built
// thesaurus or role graph is written back to it — so a restart warms from
// the last persisted state instead of re-walking every role's source.
type State struct {
	watcher *Watcher
	store   *persistence.Store

	mu         sync.RWMutex
	thesauri   map[string]types.Thesaurus
	roleGraphs map[string]*rolegraph.RoleGraph
}

// NewState loads path, builds an initial [State], and starts watching the
// file for changes at the given poll interval (via [NewWatcher]).
func NewState(path string, opts ...WatcherOption) (*State, error) {
	s := &State{
		thesauri:   make(map[string]types.Thesaurus),
		roleGraphs: make(map[string]*rolegraph.RoleGraph),
	}

	watcher, err := NewWatcher(path, s.onReload, opts...)
	if err != nil {
		return nil, err
	}
	s.watcher = watcher

	if err := s.buildAll(watcher.Current()); err != nil {
		watcher.Stop()
		return nil, err
	}
	return s, nil
}

// Current returns the most recently loaded [Config].
func (s *State) Current() *Config {
	return s.watcher.Current()
}

// Stop stops the underlying file watcher.
func (s *State) Stop() {
	s.watcher.Stop()
}

// Replace installs cfg as the current configuration immediately, invalidating
// role caches exactly as a file-based reload would (see onReload). Used by
// the POST /config endpoint.
func (s *State) Replace(cfg *Config) error {
	s.watcher.Replace(cfg)
	return nil
}

// SetStore installs the persistence tier used to cache built thesauri and
// role graphs across restarts. Call it before the first [State.Thesaurus] /
// [State.RoleGraph] lookup for a role to take effect for that role; caches
// already populated in memory aren't retroactively backed by the store.
func (s *State) SetStore(store *persistence.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
}

// Role looks up a named role in the current config, falling back to
// DefaultRole when name is empty.
func (s *State) Role(name string) (types.Role, bool) {
	cfg := s.Current()
	if name == "" {
		name = cfg.DefaultRole
	}
	role, ok := cfg.Roles[name]
	return role, ok
}

// Thesaurus returns the cached thesaurus for role, building and caching it
// on first use. A cold miss first checks the installed [persistence.Store]
// (if any) before rebuilding from source, and a freshly built thesaurus is
// written back to every store profile.
func (s *State) Thesaurus(ctx context.Context, role types.Role) (types.Thesaurus, error) {
	s.mu.RLock()
	th, ok := s.thesauri[role.Name]
	store := s.store
	s.mu.RUnlock()
	if ok {
		return th, nil
	}

	if store != nil {
		if data, err := store.Load(ctx, persistence.Key("thesaurus", role.Name)); err == nil {
			var rec types.ThesaurusRecord
			if jerr := json.Unmarshal(data, &rec); jerr == nil {
				s.mu.Lock()
				s.thesauri[role.Name] = rec.Terms
				s.mu.Unlock()
				return rec.Terms, nil
			}
		}
	}

	th, err := thesaurus.ForRole(role)
	if err != nil {
		return nil, fmt.Errorf("config: build thesaurus for role %q: %w", role.Name, err)
	}

	s.mu.Lock()
	s.thesauri[role.Name] = th
	s.mu.Unlock()

	if store != nil {
		rec := types.ThesaurusRecord{Role: role.Name, Terms: th}
		if data, merr := json.Marshal(rec); merr == nil {
			if serr := store.SaveToAll(ctx, rec, data); serr != nil {
				slog.Warn("config: persist thesaurus failed", "role", role.Name, "err", serr)
			}
		}
	}
	return th, nil
}

// RoleGraph returns the cached role graph for role, ensuring the role's
// thesaurus builds successfully first (a role graph is useless without the
// thesaurus that turns document text into term matches). A cold miss
// restores from the installed [persistence.Store] when a prior snapshot
// exists, rather than always starting empty — the search pipeline persists
// updated snapshots via [State.SaveRoleGraph] as it indexes documents.
func (s *State) RoleGraph(ctx context.Context, role types.Role) (*rolegraph.RoleGraph, error) {
	s.mu.RLock()
	rg, ok := s.roleGraphs[role.Name]
	store := s.store
	s.mu.RUnlock()
	if ok {
		return rg, nil
	}

	if _, err := s.Thesaurus(ctx, role); err != nil {
		return nil, err
	}

	rg = rolegraph.New()
	if store != nil {
		if data, err := store.Load(ctx, persistence.Key("rolegraph", role.Name)); err == nil {
			var rec rolegraph.Record
			if jerr := json.Unmarshal(data, &rec); jerr == nil {
				if rerr := rg.Restore(rec.Snapshot); rerr != nil {
					slog.Warn("config: restore role graph failed", "role", role.Name, "err", rerr)
				}
			}
		}
	}

	s.mu.Lock()
	s.roleGraphs[role.Name] = rg
	s.mu.Unlock()
	return rg, nil
}

// SaveRoleGraph persists role's current role-graph snapshot to every store
// profile, so indexed documents survive a restart instead of requiring every
// haystack to be re-crawled. A no-op when no store is installed.
func (s *State) SaveRoleGraph(ctx context.Context, role types.Role, rg *rolegraph.RoleGraph) error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return nil
	}
	rec := rolegraph.Record{Role: role.Name, Snapshot: rg.Snapshot()}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("config: marshal role graph %q: %w", role.Name, err)
	}
	return store.SaveToAll(ctx, rec, data)
}

// SaveDocument persists doc to every store profile under its canonical
// document key. A no-op when no store is installed.
func (s *State) SaveDocument(ctx context.Context, doc types.Document) error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: marshal document %q: %w", doc.ID, err)
	}
	return store.SaveToAll(ctx, doc, data)
}

// LoadAutomaton returns a role's previously cached, serialized automaton
// bytes from the installed store, if any. Callers restore it with
// [automata.Deserialize] rather than rebuilding from the role's thesaurus.
func (s *State) LoadAutomaton(ctx context.Context, role types.Role) ([]byte, bool) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return nil, false
	}
	data, err := store.Load(ctx, persistence.Key("automaton", role.Name))
	if err != nil {
		return nil, false
	}
	return data, true
}

// SaveAutomaton persists a role's serialized automaton so a future cold
// lookup can restore it instead of recompiling from the thesaurus. A no-op
// when no store is installed.
func (s *State) SaveAutomaton(ctx context.Context, role types.Role, data []byte) error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return nil
	}
	return store.SaveToAll(ctx, automata.AutomatonRecord{Role: role.Name}, data)
}

// InvalidateRole drops the cached thesaurus and role graph for name, forcing
// the next [State.Thesaurus] / [State.RoleGraph] call to rebuild them.
func (s *State) InvalidateRole(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.thesauri, name)
	delete(s.roleGraphs, name)
}

// buildAll eagerly builds the thesaurus and role graph for every role in cfg
// so initial requests don't pay a cold-build penalty.
func (s *State) buildAll(cfg *Config) error {
	ctx := context.Background()
	for name, role := range cfg.Roles {
		if _, err := s.RoleGraph(ctx, role); err != nil {
			return fmt.Errorf("config: initial build for role %q: %w", name, err)
		}
	}
	return nil
}

// onReload is the [Watcher] callback: it diffs old and new, invalidating
// caches only for roles whose thesaurus source actually changed, so an
// unrelated config edit (e.g. server.log_level) never pays a rebuild cost.
func (s *State) onReload(old, new *Config) {
	diff := Diff(old, new)
	for _, rd := range diff.RoleChanges {
		if rd.ThesaurusChanged || rd.Removed {
			s.InvalidateRole(rd.Name)
			slog.Info("config: invalidated role cache", "role", rd.Name)
		}
	}
}
