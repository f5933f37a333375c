// Package search implements the end-to-end query pipeline: resolve a role,
// ensure its thesaurus and role graph are built, fan out to its haystacks,
// merge and index the results into the role graph, score and blend, then
// paginate and optionally summarize the top results.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/terraphim/kgsearchd/internal/automata"
	"github.com/terraphim/kgsearchd/internal/config"
	"github.com/terraphim/kgsearchd/internal/middleware"
	"github.com/terraphim/kgsearchd/internal/observe"
	"github.com/terraphim/kgsearchd/internal/rolegraph"
	"github.com/terraphim/kgsearchd/internal/scoring"
	"github.com/terraphim/kgsearchd/internal/types"
)

// Pipeline ties together config state, the haystack dispatcher, and scoring
// to answer a [types.SearchQuery]. It caches one built [automata.Automaton]
// per role alongside the role's thesaurus, since compiling the automaton is
// the expensive step a repeated search would otherwise redo every time.
type Pipeline struct {
	state      *config.State
	dispatcher *middleware.Dispatcher
	summarizer config.Summarizer
	metrics    *observe.Metrics

	// SummarizeTopK bounds how many top-ranked results get the summarizer
	// hook applied. Zero disables summarization regardless of Summarizer.
	SummarizeTopK int

	automata map[string]*automata.Automaton
}

// New creates a Pipeline. summarizer and metrics may be nil to disable the
// post-scoring hook and metrics recording respectively.
func New(state *config.State, dispatcher *middleware.Dispatcher, summarizer config.Summarizer, metrics *observe.Metrics) *Pipeline {
	return &Pipeline{
		state:         state,
		dispatcher:    dispatcher,
		summarizer:    summarizer,
		metrics:       metrics,
		SummarizeTopK: 3,
		automata:      map[string]*automata.Automaton{},
	}
}

// Result is the paginated outcome of a search.
type Result struct {
	Documents []types.Document
	Total     int
}

// Search runs the full pipeline for q and returns the paginated, scored
// documents.
func (p *Pipeline) Search(ctx context.Context, q types.SearchQuery) (Result, error) {
	start := time.Now()
	if p.metrics != nil {
		p.metrics.ActiveSearches.Add(ctx, 1)
		defer p.metrics.ActiveSearches.Add(ctx, -1)
	}

	role, ok := p.state.Role(q.Role)
	if !ok {
		return Result{}, &Error{Kind: KindRoleNotFound, Message: fmt.Sprintf("role %q not found", q.Role)}
	}

	auto, th, err := p.ensureAutomaton(ctx, role)
	if err != nil {
		return Result{}, &Error{Kind: KindThesaurusUnavailable, Message: err.Error(), cause: err}
	}

	rg, err := p.state.RoleGraph(ctx, role)
	if err != nil {
		return Result{}, &Error{Kind: KindThesaurusUnavailable, Message: err.Error(), cause: err}
	}

	merged, statuses := p.recordStage(ctx, "middleware", role.Name, func() (types.Index, []middleware.Status) {
		return p.dispatcher.SearchHaystacks(ctx, q.Search, role.Haystacks)
	})
	p.recordHaystackMetrics(ctx, statuses)

	op := rolegraph.OperatorOr
	if q.Operator == "and" {
		op = rolegraph.OperatorAnd
	}

	docs := make([]types.Document, 0, merged.Len())
	for pair := merged.Oldest(); pair != nil; pair = pair.Next() {
		doc := pair.Value
		matches := auto.FindMatches(doc.Title+" "+doc.Body, false)
		rg.InsertDocument(doc.ID, toAutomataMatches(matches))
		if err := p.state.SaveDocument(ctx, doc); err != nil {
			slog.Warn("search: persist document failed", "id", doc.ID, "err", err)
		}
		if p.metrics != nil {
			p.metrics.DocumentsIndexed.Add(ctx, 1)
		}
		docs = append(docs, doc)
	}
	if err := p.state.SaveRoleGraph(ctx, role, rg); err != nil {
		slog.Warn("search: persist role graph failed", "role", role.Name, "err", err)
	}

	queryIDs := auto.FindMatchesIDs(q.Search)
	ranked := rg.Query(queryIDs, op)
	graphScore := make(map[string]int, len(ranked))
	for _, r := range ranked {
		graphScore[r.DocID] = r.Score
	}

	scorer := scoring.ForName(role.RelevanceFunction)
	scoredDocs := scoring.RankDocuments(scorer, q.Search, docs)

	weight := role.EffectiveBlendWeight()
	maxGraph := 1.0
	for _, s := range graphScore {
		if float64(s) > maxGraph {
			maxGraph = float64(s)
		}
	}
	for i := range scoredDocs {
		gs := float64(graphScore[scoredDocs[i].ID]) / maxGraph
		scoredDocs[i].Rank = scoring.Blend(scoredDocs[i].Rank, gs, weight)
	}
	reorderByRank(scoredDocs)

	total := len(scoredDocs)
	page := paginate(scoredDocs, q.Offset, q.EffectiveLimit())

	if p.summarizer != nil && th != nil {
		p.summarizeTop(ctx, page)
	}

	if p.metrics != nil {
		p.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
	}

	return Result{Documents: page, Total: total}, nil
}

// IndexDocument inserts doc directly into roleName's role graph without
// going through the haystack middleware, per the POST /documents endpoint.
func (p *Pipeline) IndexDocument(ctx context.Context, roleName string, doc types.Document) error {
	role, ok := p.state.Role(roleName)
	if !ok {
		return &Error{Kind: KindRoleNotFound, Message: fmt.Sprintf("role %q not found", roleName)}
	}

	auto, _, err := p.ensureAutomaton(ctx, role)
	if err != nil {
		return &Error{Kind: KindThesaurusUnavailable, Message: err.Error(), cause: err}
	}

	rg, err := p.state.RoleGraph(ctx, role)
	if err != nil {
		return &Error{Kind: KindThesaurusUnavailable, Message: err.Error(), cause: err}
	}

	matches := auto.FindMatches(doc.Title+" "+doc.Body, false)
	rg.InsertDocument(doc.ID, matches)
	if err := p.state.SaveDocument(ctx, doc); err != nil {
		slog.Warn("search: persist document failed", "id", doc.ID, "err", err)
	}
	if err := p.state.SaveRoleGraph(ctx, role, rg); err != nil {
		slog.Warn("search: persist role graph failed", "role", role.Name, "err", err)
	}
	if p.metrics != nil {
		p.metrics.DocumentsIndexed.Add(ctx, 1)
	}
	return nil
}

// ensureAutomaton returns the cached automaton and thesaurus for role,
// building both on first use (and after [config.State.InvalidateRole]).
func (p *Pipeline) ensureAutomaton(ctx context.Context, role types.Role) (*automata.Automaton, types.Thesaurus, error) {
	th, err := p.state.Thesaurus(ctx, role)
	if err != nil {
		return nil, nil, err
	}
	if auto, ok := p.automata[role.Name]; ok {
		return auto, th, nil
	}

	if data, ok := p.state.LoadAutomaton(ctx, role); ok {
		if auto, err := automata.Deserialize(data); err == nil {
			p.automata[role.Name] = auto
			return auto, th, nil
		}
	}

	auto, err := automata.Build(th)
	if err != nil {
		return nil, nil, fmt.Errorf("search: build automaton for role %q: %w", role.Name, err)
	}
	p.automata[role.Name] = auto

	if data, serr := auto.Serialize(); serr == nil {
		if err := p.state.SaveAutomaton(ctx, role, data); err != nil {
			slog.Warn("search: persist automaton failed", "role", role.Name, "err", err)
		}
	}
	return auto, th, nil
}

func toAutomataMatches(matches []automata.Matched) []automata.Matched { return matches }

func paginate(docs []types.Document, offset, limit int) []types.Document {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(docs) {
		return nil
	}
	end := offset + limit
	if end > len(docs) {
		end = len(docs)
	}
	return docs[offset:end]
}

func reorderByRank(docs []types.Document) {
	for i := 1; i < len(docs); i++ {
		for j := i; j > 0 && docs[j].Rank > docs[j-1].Rank; j-- {
			docs[j], docs[j-1] = docs[j-1], docs[j]
		}
	}
}

func (p *Pipeline) recordStage(ctx context.Context, stage, role string, fn func() (types.Index, []middleware.Status)) (types.Index, []middleware.Status) {
	start := time.Now()
	idx, statuses := fn()
	if p.metrics != nil {
		p.metrics.StageDuration.Record(ctx, time.Since(start).Seconds())
	}
	_ = stage
	_ = role
	return idx, statuses
}

func (p *Pipeline) recordHaystackMetrics(ctx context.Context, statuses []middleware.Status) {
	if p.metrics == nil {
		return
	}
	for _, st := range statuses {
		p.metrics.HaystackRequests.Add(ctx, 1)
		if st.Err != nil {
			p.metrics.HaystackErrors.Add(ctx, 1)
		}
	}
}

// summarizeTop calls the configured summarizer for the first
// p.SummarizeTopK documents, best-effort: a failure or timeout just leaves
// Description unset.
func (p *Pipeline) summarizeTop(ctx context.Context, docs []types.Document) {
	for i := range docs {
		if i >= p.SummarizeTopK {
			return
		}
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		summary, err := p.summarizer.Summarize(sctx, docs[i].Title, docs[i].Body)
		cancel()
		if err != nil {
			continue
		}
		docs[i].Description = summary
	}
}
