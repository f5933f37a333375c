// Package scoring implements the relevance functions a role may select to
// rank search results: several BM25 variants, TF-IDF, Jaccard, a fuzzy
// query-ratio scorer, a Jaro-Winkler title scorer, and a title-only scorer.
//
// Every scorer implements [Scorer]; [Blend] combines a scorer's text-
// relevance signal with the role graph's structural rank using a
// configurable convex weight.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/terraphim/kgsearchd/internal/types"
)

// Scorer ranks a set of documents against a query string. Implementations
// must be safe for concurrent read-only use.
type Scorer interface {
	// Score returns a relevance score for doc given query. Higher is better;
	// scores are not required to be normalized across scorers.
	Score(query string, corpus []types.Document, doc types.Document) float64
}

// tokenize lowercases and splits on runs of non-alphanumeric characters.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func termFreq(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// corpusStats holds document-frequency and average-length statistics shared
// by the BM25 family and TF-IDF.
type corpusStats struct {
	docFreq map[string]int
	numDocs int
	avgLen  float64
	docTF   map[string]map[string]int
	docLen  map[string]int
}

func buildStats(corpus []types.Document, field func(types.Document) string) corpusStats {
	st := corpusStats{
		docFreq: map[string]int{},
		docTF:   map[string]map[string]int{},
		docLen:  map[string]int{},
		numDocs: len(corpus),
	}
	totalLen := 0
	for _, d := range corpus {
		tokens := tokenize(field(d))
		tf := termFreq(tokens)
		st.docTF[d.ID] = tf
		st.docLen[d.ID] = len(tokens)
		totalLen += len(tokens)
		for term := range tf {
			st.docFreq[term]++
		}
	}
	if st.numDocs > 0 {
		st.avgLen = float64(totalLen) / float64(st.numDocs)
	}
	return st
}

func idf(st corpusStats, term string) float64 {
	n := float64(st.numDocs)
	df := float64(st.docFreq[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func bodyField(d types.Document) string { return d.Title + " " + d.Body }

func titleField(d types.Document) string { return d.Title }

func bodyOnlyField(d types.Document) string { return d.Body }

func descriptionField(d types.Document) string { return d.Description }

func tagsField(d types.Document) string { return strings.Join(d.Tags, " ") }

// BM25 is the classic Okapi BM25 scorer over each document's title+body.
type BM25 struct{ K1, B float64 }

// NewBM25 returns a BM25 scorer with the conventional defaults k1=1.2, b=0.75.
func NewBM25() BM25 { return BM25{K1: 1.2, B: 0.75} }

func (s BM25) Score(query string, corpus []types.Document, doc types.Document) float64 {
	st := buildStats(corpus, bodyField)
	return bm25Score(st, query, doc.ID, s.K1, s.B)
}

func bm25Score(st corpusStats, query, docID string, k1, b float64) float64 {
	tf := st.docTF[docID]
	dl := float64(st.docLen[docID])
	var score float64
	for _, term := range tokenize(query) {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		numer := f * (k1 + 1)
		denom := f + k1*(1-b+b*dl/maxFloat(st.avgLen, 1))
		score += idf(st, term) * numer / denom
	}
	return score
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// BM25F is BM25 with per-field weighting across title, body, description,
// and tags — title and tags weighted more heavily since they carry the
// strongest, most deliberate relevance signal.
type BM25F struct {
	K1, B             float64
	TitleWeight       float64
	BodyWeight        float64
	DescriptionWeight float64
	TagsWeight        float64
}

// NewBM25F returns a BM25F scorer weighting title 3x, description 2x, tags
// 2.5x, and body 1x (the baseline) against each other.
func NewBM25F() BM25F {
	return BM25F{K1: 1.2, B: 0.75, TitleWeight: 3, BodyWeight: 1, DescriptionWeight: 2, TagsWeight: 2.5}
}

func (s BM25F) Score(query string, corpus []types.Document, doc types.Document) float64 {
	titleStats := buildStats(corpus, titleField)
	bodyStats := buildStats(corpus, bodyOnlyField)
	descStats := buildStats(corpus, descriptionField)
	tagStats := buildStats(corpus, tagsField)
	return s.TitleWeight*bm25Score(titleStats, query, doc.ID, s.K1, s.B) +
		s.BodyWeight*bm25Score(bodyStats, query, doc.ID, s.K1, s.B) +
		s.DescriptionWeight*bm25Score(descStats, query, doc.ID, s.K1, s.B) +
		s.TagsWeight*bm25Score(tagStats, query, doc.ID, s.K1, s.B)
}

// BM25Plus adds a lower-bound term δ so that any document containing a query
// term scores strictly above one that does not, even for very long documents.
type BM25Plus struct {
	K1, B, Delta float64
}

// NewBM25Plus returns a BM25+ scorer with δ=1.0.
func NewBM25Plus() BM25Plus { return BM25Plus{K1: 1.2, B: 0.75, Delta: 1.0} }

func (s BM25Plus) Score(query string, corpus []types.Document, doc types.Document) float64 {
	st := buildStats(corpus, bodyField)
	tf := st.docTF[doc.ID]
	dl := float64(st.docLen[doc.ID])
	var score float64
	for _, term := range tokenize(query) {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		numer := f * (s.K1 + 1)
		denom := f + s.K1*(1-s.B+s.B*dl/maxFloat(st.avgLen, 1))
		score += idf(st, term) * (numer/denom + s.Delta)
	}
	return score
}

// TFIDF scores documents by summed term-frequency × inverse-document-frequency.
type TFIDF struct{}

func (TFIDF) Score(query string, corpus []types.Document, doc types.Document) float64 {
	st := buildStats(corpus, bodyField)
	tf := st.docTF[doc.ID]
	var score float64
	for _, term := range tokenize(query) {
		if tf[term] == 0 {
			continue
		}
		score += float64(tf[term]) * idf(st, term)
	}
	return score
}

// Jaccard scores documents by the Jaccard similarity between the query's
// character n-grams and the document's, so near-misses (typos, stemming
// variants) still score above zero the way whole-token overlap cannot.
type Jaccard struct {
	// N is the n-gram length. Zero defaults to 3 (trigrams) in Score.
	N int
}

// NewJaccard returns a Jaccard scorer over character trigrams.
func NewJaccard() Jaccard { return Jaccard{N: 3} }

func (j Jaccard) Score(query string, _ []types.Document, doc types.Document) float64 {
	n := j.N
	if n <= 0 {
		n = 3
	}
	q := ngramSet(strings.ToLower(query), n)
	d := ngramSet(strings.ToLower(bodyField(doc)), n)
	if len(q) == 0 || len(d) == 0 {
		return 0
	}
	inter := 0
	for g := range q {
		if _, ok := d[g]; ok {
			inter++
		}
	}
	union := len(q) + len(d) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ngramSet returns the set of n-character substrings of s. Strings shorter
// than n contribute s itself as their sole n-gram.
func ngramSet(s string, n int) map[string]struct{} {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) < n {
		return map[string]struct{}{s: {}}
	}
	set := make(map[string]struct{}, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		set[string(runes[i:i+n])] = struct{}{}
	}
	return set
}

func toSet(tokens []string) map[string]struct{} {
	s := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// TitleScorer ranks purely by how many query tokens appear in the
// document title, the cheapest and least precise scorer.
type TitleScorer struct{}

func (TitleScorer) Score(query string, _ []types.Document, doc types.Document) float64 {
	titleTokens := toSet(tokenize(doc.Title))
	var hits float64
	for _, t := range tokenize(query) {
		if _, ok := titleTokens[t]; ok {
			hits++
		}
	}
	return hits
}

// ForName returns the [Scorer] implementation for a role's configured
// relevance function. JaroWinkler is provided by [NewJaroWinkler] and
// QueryRatio by [NewQueryRatio] since both need no corpus-wide state.
func ForName(name types.RelevanceFunction) Scorer {
	switch name {
	case types.RelevanceBM25:
		return NewBM25()
	case types.RelevanceBM25F:
		return NewBM25F()
	case types.RelevanceBM25Plus:
		return NewBM25Plus()
	case types.RelevanceTFIDF:
		return TFIDF{}
	case types.RelevanceJaccard:
		return NewJaccard()
	case types.RelevanceJaroWinkler:
		return NewJaroWinkler()
	case types.RelevanceQueryRatio:
		return NewQueryRatio()
	default:
		return TitleScorer{}
	}
}

// Blend combines a text-relevance score with the role graph's structural
// rank using weight as the convex combination factor (weight applied to
// textScore, 1-weight to graphScore). See [types.Role.EffectiveBlendWeight]
// for where weight comes from.
func Blend(textScore, graphScore, weight float64) float64 {
	return weight*textScore + (1-weight)*graphScore
}

// RankDocuments scores every document in docs against query using scorer and
// returns them sorted by score descending, ID ascending on ties.
func RankDocuments(scorer Scorer, query string, docs []types.Document) []types.Document {
	type scored struct {
		doc   types.Document
		score float64
	}
	out := make([]scored, len(docs))
	for i, d := range docs {
		out[i] = scored{doc: d, score: scorer.Score(query, docs, d)}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].doc.ID < out[j].doc.ID
	})
	ranked := make([]types.Document, len(out))
	for i, s := range out {
		d := s.doc
		d.Rank = s.score
		ranked[i] = d
	}
	return ranked
}
