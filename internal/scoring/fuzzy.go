package scoring

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/terraphim/kgsearchd/internal/types"
)

// JaroWinklerScorer ranks documents by the best Jaro-Winkler similarity
// between the query and the document title, the same string-similarity
// primitive the teacher stack uses for fuzzy entity matching
// (github.com/antzucaro/matchr), applied here to title ranking instead of
// transcript correction.
type JaroWinklerScorer struct{}

// NewJaroWinkler returns a [JaroWinklerScorer].
func NewJaroWinkler() JaroWinklerScorer { return JaroWinklerScorer{} }

func (JaroWinklerScorer) Score(query string, _ []types.Document, doc types.Document) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	title := strings.ToLower(strings.TrimSpace(doc.Title))
	if q == "" || title == "" {
		return 0
	}
	best := matchr.JaroWinkler(q, title, false)
	for _, word := range strings.Fields(title) {
		if s := matchr.JaroWinkler(q, word, false); s > best {
			best = s
		}
	}
	return best
}

// QueryRatioScorer scores documents by the fraction of query tokens that
// have a close fuzzy match (Jaro-Winkler ≥ threshold) somewhere in the
// document body, tie-broken by the average match strength.
type QueryRatioScorer struct {
	Threshold float64
}

// NewQueryRatio returns a QueryRatioScorer with the default threshold 0.85,
// matching the teacher's fuzzy-fallback threshold in
// internal/transcript/phonetic.
func NewQueryRatio() QueryRatioScorer { return QueryRatioScorer{Threshold: 0.85} }

func (s QueryRatioScorer) Score(query string, _ []types.Document, doc types.Document) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	docTokens := tokenize(bodyField(doc))
	if len(docTokens) == 0 {
		return 0
	}

	var matched int
	var totalScore float64
	for _, qt := range queryTokens {
		best := 0.0
		for _, dt := range docTokens {
			if sc := matchr.JaroWinkler(qt, dt, false); sc > best {
				best = sc
			}
		}
		if best >= s.Threshold {
			matched++
			totalScore += best
		}
	}

	ratio := float64(matched) / float64(len(queryTokens))
	if matched == 0 {
		return 0
	}
	return ratio + totalScore/float64(matched)/100
}
