// Package types defines the shared data model used across the search core:
// normalized terms, thesauri, documents, the in-memory index, and the role /
// haystack configuration records that drive a search.
//
// These types form the lingua franca between the automata, role-graph,
// thesaurus, middleware, scoring, and search packages. Cross-cutting
// structures live here to avoid circular imports; each package still owns
// its own internal working types.
package types

import (
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Canonicalize lowercases s, trims surrounding whitespace, and drops every
// rune that is not an ASCII letter or digit. It is the single equality
// function used for thesaurus keys, role names, and persistence keys —
// "Software Engineer" and "software-engineer " canonicalize to the same key.
func Canonicalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizedTermValue is the canonical identity of a thesaurus entry: a
// numeric ID plus the normalized term string every synonym ultimately
// resolves to.
type NormalizedTermValue struct {
	ID    uint64 `json:"id"`
	Value string `json:"value"`
}

// NormalizedTerm pairs a literal surface form (as it appears in source text)
// with the NormalizedTermValue it resolves to.
type NormalizedTerm struct {
	Term  string              `json:"term"`
	Value NormalizedTermValue `json:"value"`
}

// Thesaurus maps normalized surface forms to their NormalizedTermValue. Keys
// are stored exactly as given; the builders in internal/thesaurus store
// canonicalized keys — see [Thesaurus.Get].
type Thesaurus map[string]NormalizedTermValue

// Get canonicalizes term and looks it up; the keys themselves are not
// canonicalized, so only keys already stored in canonical form are found.
// Returns the zero value and false when absent.
func (t Thesaurus) Get(term string) (NormalizedTermValue, bool) {
	v, ok := t[Canonicalize(term)]
	return v, ok
}

// ThesaurusRecord wraps a role's built Thesaurus with the role name needed
// to derive its persistence key, implementing [persistence.Persistable]
// without requiring Thesaurus itself (a bare map) to carry that identity.
type ThesaurusRecord struct {
	Role  string    `json:"role"`
	Terms Thesaurus `json:"terms"`
}

// GetKey implements [persistence.Persistable].
func (r ThesaurusRecord) GetKey() string {
	return "thesaurus_" + Canonicalize(r.Role)
}

// Document is a single retrievable unit returned by a haystack indexer and
// carried through scoring, supersession, and the HTTP response.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Rank        float64   `json:"rank"`
	SourceHaystack string `json:"source_haystack,omitempty"`
	ModifiedAt  time.Time `json:"modified_at,omitempty"`
}

// GetKey implements [persistence.Persistable], keying a document by its
// canonicalized ID so callers never have to format the storage key by hand.
func (d Document) GetKey() string {
	return "document_" + Canonicalize(d.ID)
}

// Index is an insertion-ordered collection of documents keyed by ID, the
// unit of work a haystack indexer produces and the middleware fan-out
// merges. Built on github.com/wk8/go-ordered-map/v2 rather than a plain map
// so that merging several haystacks' results — and later rendering them —
// preserves first-seen order deterministically instead of Go's randomized
// map iteration.
type Index struct {
	*orderedmap.OrderedMap[string, Document]
}

// NewIndex returns an empty, ready-to-use Index.
func NewIndex() Index {
	return Index{orderedmap.New[string, Document]()}
}

// Insert adds or overwrites doc by ID, keeping its original position on an
// overwrite (last writer wins on value, first-seen order is preserved).
func (idx Index) Insert(doc Document) {
	idx.Set(doc.ID, doc)
}

// Merge copies every document from other into idx in other's iteration
// order, overwriting on ID collision (last writer wins — callers control
// ordering by choosing the order they call Merge in).
func (idx Index) Merge(other Index) {
	if other.OrderedMap == nil {
		return
	}
	for pair := other.Oldest(); pair != nil; pair = pair.Next() {
		idx.Set(pair.Key, pair.Value)
	}
}

// ServiceType names the kind of haystack indexer a [Haystack] dispatches to.
type ServiceType string

const (
	ServiceRipgrep   ServiceType = "ripgrep"
	ServiceAtomic    ServiceType = "atomic"
	ServiceClickUp   ServiceType = "clickup"
	ServiceJira      ServiceType = "jira"
	ServiceDiscourse ServiceType = "discourse"
	ServiceGmail     ServiceType = "gmail"
	ServiceJMAP      ServiceType = "jmap"
	ServiceMCP       ServiceType = "mcp"
)

// IsValid reports whether s is a known service type.
func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceRipgrep, ServiceAtomic, ServiceClickUp, ServiceJira, ServiceDiscourse, ServiceGmail, ServiceJMAP, ServiceMCP:
		return true
	}
	return false
}

// RelevanceFunction names the scorer a role uses to rank search results.
type RelevanceFunction string

const (
	RelevanceTitleScorer RelevanceFunction = "title-scorer"
	RelevanceBM25        RelevanceFunction = "bm25"
	RelevanceBM25F       RelevanceFunction = "bm25f"
	RelevanceBM25Plus    RelevanceFunction = "bm25plus"
	RelevanceTFIDF       RelevanceFunction = "tfidf"
	RelevanceJaccard     RelevanceFunction = "jaccard"
	RelevanceQueryRatio  RelevanceFunction = "query-ratio"
	RelevanceJaroWinkler RelevanceFunction = "jaro-winkler"
)

// IsValid reports whether r is a known relevance function name.
func (r RelevanceFunction) IsValid() bool {
	switch r {
	case RelevanceTitleScorer, RelevanceBM25, RelevanceBM25F, RelevanceBM25Plus, RelevanceTFIDF, RelevanceJaccard, RelevanceQueryRatio, RelevanceJaroWinkler:
		return true
	}
	return false
}

// KnowledgeGraphLocal describes a role's local, filesystem-backed thesaurus
// source (a Logseq-style directory of markdown pages).
type KnowledgeGraphLocal struct {
	Path string `yaml:"path"`
}

// Haystack describes one indexable source a role's search fans out to.
type Haystack struct {
	Location    string            `yaml:"location"`
	Service     ServiceType       `yaml:"service"`
	ReadOnly    bool              `yaml:"read_only"`
	Extra       map[string]string `yaml:"extra,omitempty"`

	// Mirrors lists alternate locations of the same service (e.g. a Jira
	// read replica), tried in order when Location's indexer fails or its
	// circuit breaker is open. Empty means this haystack has no fallback.
	Mirrors []string `yaml:"mirrors,omitempty"`
}

// Role declares a named search profile: where its thesaurus comes from,
// which haystacks it searches, and how results are scored.
type Role struct {
	Name              string             `yaml:"name"`
	Shortname         string             `yaml:"shortname"`
	RelevanceFunction RelevanceFunction  `yaml:"relevance_function"`
	TerraphimItHub    string             `yaml:"kg_remote_url,omitempty"`
	KG                *KnowledgeGraphLocal `yaml:"kg,omitempty"`
	Haystacks         []Haystack         `yaml:"haystacks"`

	// BlendWeight overrides the default 0.5/0.5 convex combination used by
	// scorers that blend a text-relevance signal with a graph-rank signal.
	// A nil value means "use the default".
	BlendWeight *float64 `yaml:"blend_weight,omitempty"`

	// Extra holds role-specific key/value settings not covered above
	// (e.g. per-scorer tuning knobs).
	Extra map[string]string `yaml:"extra,omitempty"`
}

// EffectiveBlendWeight returns r.BlendWeight if set, else the 0.5 default.
func (r Role) EffectiveBlendWeight() float64 {
	if r.BlendWeight != nil {
		return *r.BlendWeight
	}
	return 0.5
}

// SearchQuery is the input to the search pipeline.
type SearchQuery struct {
	Search   string `json:"search"`
	Role     string `json:"role"`
	Operator string `json:"operator,omitempty"` // "and" or "or", default "or"
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// EffectiveLimit returns q.Limit, defaulting to 10 when unset or negative.
func (q SearchQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return 10
	}
	return q.Limit
}
