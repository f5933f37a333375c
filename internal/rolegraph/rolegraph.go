// Package rolegraph implements the weighted, directed term graph used to
// rank documents by how densely their matched terms co-occur for a given
// role's thesaurus.
//
// Each document indexed into the graph contributes a node for every matched
// term and an edge for every adjacent pair of matched terms (the
// "co-occurrence window" is the sequence of term matches in document order).
// Re-indexing the same document ID first subtracts its prior contribution —
// supersession — so the graph never double-counts a document's weight.
package rolegraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/terraphim/kgsearchd/internal/automata"
	"github.com/terraphim/kgsearchd/internal/types"
)

// edgeKey identifies a directed edge by its endpoint term IDs.
type edgeKey struct {
	from, to uint64
}

// docState is one document's prior contribution to the graph, retained so a
// later re-index (or removal) can subtract it exactly — the supersession
// invariant.
type docState struct {
	nodeWeights map[uint64]int
	edgeWeights map[edgeKey]int
}

// RoleGraph is a thread-safe, directed weighted multigraph over normalized
// term IDs, scoped to a single role's thesaurus.
type RoleGraph struct {
	mu sync.RWMutex

	nodeWeight map[uint64]int
	nodeDocs   map[uint64]map[string]struct{}
	edgeWeight map[edgeKey]int

	docs map[string]docState // current contribution per document ID
}

// New returns an empty RoleGraph.
func New() *RoleGraph {
	return &RoleGraph{
		nodeWeight: map[uint64]int{},
		nodeDocs:   map[uint64]map[string]struct{}{},
		edgeWeight: map[edgeKey]int{},
		docs:       map[string]docState{},
	}
}

// NodeCount returns the number of distinct terms with non-zero weight.
func (g *RoleGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodeWeight)
}

// EdgeCount returns the number of distinct directed edges with non-zero weight.
func (g *RoleGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edgeWeight)
}

// InsertDocument indexes doc against the graph using matches, the ordered
// sequence of term matches found in the document's text by the role's
// [automata.Automaton]. If docID was indexed before, its prior contribution
// is atomically subtracted first (supersession), so re-indexing a changed
// document — or indexing an unchanged one twice — never inflates weights.
func (g *RoleGraph) InsertDocument(docID string, matches []automata.Matched) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.supersede(docID)

	if len(matches) == 0 {
		delete(g.docs, docID)
		return
	}

	state := docState{
		nodeWeights: map[uint64]int{},
		edgeWeights: map[edgeKey]int{},
	}
	for _, m := range matches {
		state.nodeWeights[m.ID]++
	}
	for i := 0; i+1 < len(matches); i++ {
		k := edgeKey{from: matches[i].ID, to: matches[i+1].ID}
		state.edgeWeights[k]++
	}

	for id, w := range state.nodeWeights {
		g.nodeWeight[id] += w
		if g.nodeDocs[id] == nil {
			g.nodeDocs[id] = map[string]struct{}{}
		}
		g.nodeDocs[id][docID] = struct{}{}
	}
	for k, w := range state.edgeWeights {
		g.edgeWeight[k] += w
	}

	g.docs[docID] = state
}

// RemoveDocument subtracts docID's contribution from the graph and forgets
// it. It is a no-op if docID was never indexed.
func (g *RoleGraph) RemoveDocument(docID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.supersede(docID)
	delete(g.docs, docID)
}

// supersede subtracts docID's previously recorded contribution, if any. The
// caller must hold g.mu.
func (g *RoleGraph) supersede(docID string) {
	prev, ok := g.docs[docID]
	if !ok {
		return
	}
	for id, w := range prev.nodeWeights {
		g.nodeWeight[id] -= w
		if g.nodeWeight[id] <= 0 {
			delete(g.nodeWeight, id)
		}
		if docs, ok := g.nodeDocs[id]; ok {
			delete(docs, docID)
			if len(docs) == 0 {
				delete(g.nodeDocs, id)
			}
		}
	}
	for k, w := range prev.edgeWeights {
		g.edgeWeight[k] -= w
		if g.edgeWeight[k] <= 0 {
			delete(g.edgeWeight, k)
		}
	}
}

// Operator selects how multiple term IDs combine in [RoleGraph.Query].
type Operator string

const (
	// OperatorOr ranks documents matching any queried term (default).
	OperatorOr Operator = "or"
	// OperatorAnd restricts results to documents matching every queried term.
	OperatorAnd Operator = "and"
)

// Ranked is one query result: a document ID and its accumulated edge-weight
// score.
type Ranked struct {
	DocID string
	Score int
}

// Query ranks documents whose nodes include the given term IDs. For
// [OperatorOr] a document need only contain one of the terms; for
// [OperatorAnd] it must contain all of them. The score is the sum of edge
// weights for edges whose endpoints are both in termIDs and both touch the
// document, falling back to summed node weight when no qualifying edge
// exists. Results are ordered by score descending, then by document ID
// ascending to break ties deterministically.
func (g *RoleGraph) Query(termIDs []uint64, op Operator) []Ranked {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(termIDs) == 0 {
		return nil
	}

	idSet := make(map[uint64]struct{}, len(termIDs))
	for _, id := range termIDs {
		idSet[id] = struct{}{}
	}

	// Collect candidate documents per operator.
	docHits := map[string]int{} // docID -> number of distinct queried terms it contains
	for _, id := range termIDs {
		for docID := range g.nodeDocs[id] {
			docHits[docID]++
		}
	}

	candidates := map[string]struct{}{}
	for docID, hits := range docHits {
		switch op {
		case OperatorAnd:
			if hits == len(termIDs) {
				candidates[docID] = struct{}{}
			}
		default:
			candidates[docID] = struct{}{}
		}
	}

	scores := make(map[string]int, len(candidates))
	for docID := range candidates {
		state := g.docs[docID]
		score := 0
		for k, w := range state.edgeWeights {
			_, fromIn := idSet[k.from]
			_, toIn := idSet[k.to]
			if fromIn && toIn {
				score += w
			}
		}
		if score == 0 {
			for id, w := range state.nodeWeights {
				if _, ok := idSet[id]; ok {
					score += w
				}
			}
		}
		scores[docID] = score
	}

	out := make([]Ranked, 0, len(scores))
	for docID, score := range scores {
		out = append(out, Ranked{DocID: docID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

// String renders a compact summary, useful for logging.
func (g *RoleGraph) String() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fmt.Sprintf("RoleGraph{nodes=%d, edges=%d, docs=%d}", len(g.nodeWeight), len(g.edgeWeight), len(g.docs))
}

// DocState is the JSON-serializable form of docState, exported for
// [Snapshot] so a stored role graph can be restored exactly: the weights it
// contributed are needed verbatim to support future supersession.
type DocState struct {
	NodeWeights map[uint64]int  `json:"node_weights"`
	EdgeWeights map[string]int  `json:"edge_weights"` // "from:to" keys, since JSON object keys must be strings
}

// Snapshot is the JSON-serializable state of a RoleGraph, produced by
// [RoleGraph.Snapshot] and consumed by [Restore].
type Snapshot struct {
	NodeWeight map[uint64]int      `json:"node_weight"`
	EdgeWeight map[string]int      `json:"edge_weight"`
	Docs       map[string]DocState `json:"docs"`
}

func edgeKeyString(k edgeKey) string {
	return fmt.Sprintf("%d:%d", k.from, k.to)
}

func parseEdgeKey(s string) (edgeKey, error) {
	var k edgeKey
	if _, err := fmt.Sscanf(s, "%d:%d", &k.from, &k.to); err != nil {
		return edgeKey{}, fmt.Errorf("rolegraph: bad edge key %q: %w", s, err)
	}
	return k, nil
}

// Snapshot captures the graph's full state for persistence. nodeDocs is
// rebuilt from docs on [Restore] rather than serialized directly, since it
// is fully derivable from each document's node weights.
func (g *RoleGraph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := Snapshot{
		NodeWeight: make(map[uint64]int, len(g.nodeWeight)),
		EdgeWeight: make(map[string]int, len(g.edgeWeight)),
		Docs:       make(map[string]DocState, len(g.docs)),
	}
	for id, w := range g.nodeWeight {
		snap.NodeWeight[id] = w
	}
	for k, w := range g.edgeWeight {
		snap.EdgeWeight[edgeKeyString(k)] = w
	}
	for docID, state := range g.docs {
		ds := DocState{
			NodeWeights: make(map[uint64]int, len(state.nodeWeights)),
			EdgeWeights: make(map[string]int, len(state.edgeWeights)),
		}
		for id, w := range state.nodeWeights {
			ds.NodeWeights[id] = w
		}
		for k, w := range state.edgeWeights {
			ds.EdgeWeights[edgeKeyString(k)] = w
		}
		snap.Docs[docID] = ds
	}
	return snap
}

// Restore replaces g's contents with snap's, rebuilding the derived
// nodeDocs index. Used to warm a RoleGraph from a persisted [Snapshot]
// instead of rebuilding it document-by-document.
func (g *RoleGraph) Restore(snap Snapshot) error {
	nodeWeight := make(map[uint64]int, len(snap.NodeWeight))
	for id, w := range snap.NodeWeight {
		nodeWeight[id] = w
	}
	edgeWeight := make(map[edgeKey]int, len(snap.EdgeWeight))
	for ks, w := range snap.EdgeWeight {
		k, err := parseEdgeKey(ks)
		if err != nil {
			return err
		}
		edgeWeight[k] = w
	}
	docs := make(map[string]docState, len(snap.Docs))
	nodeDocs := make(map[uint64]map[string]struct{})
	for docID, ds := range snap.Docs {
		state := docState{
			nodeWeights: make(map[uint64]int, len(ds.NodeWeights)),
			edgeWeights: make(map[edgeKey]int, len(ds.EdgeWeights)),
		}
		for id, w := range ds.NodeWeights {
			state.nodeWeights[id] = w
			if nodeDocs[id] == nil {
				nodeDocs[id] = map[string]struct{}{}
			}
			nodeDocs[id][docID] = struct{}{}
		}
		for ks, w := range ds.EdgeWeights {
			k, err := parseEdgeKey(ks)
			if err != nil {
				return err
			}
			state.edgeWeights[k] = w
		}
		docs[docID] = state
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodeWeight = nodeWeight
	g.edgeWeight = edgeWeight
	g.docs = docs
	g.nodeDocs = nodeDocs
	return nil
}

// Record wraps a role's graph [Snapshot] with the role name needed to
// derive its persistence key, implementing [persistence.Persistable].
type Record struct {
	Role     string   `json:"role"`
	Snapshot Snapshot `json:"snapshot"`
}

// GetKey implements [persistence.Persistable].
func (r Record) GetKey() string {
	return "rolegraph_" + types.Canonicalize(r.Role)
}
