package scoring

import (
	"testing"

	"github.com/terraphim/kgsearchd/internal/types"
)

func sampleCorpus() []types.Document {
	return []types.Document{
		{ID: "1", Title: "Rust async runtimes", Body: "tokio is an async runtime for rust"},
		{ID: "2", Title: "Go concurrency", Body: "goroutines and channels for concurrency in go"},
		{ID: "3", Title: "Async in Go", Body: "go also has async patterns using channels"},
	}
}

func TestBM25RanksMoreRelevantDocHigher(t *testing.T) {
	corpus := sampleCorpus()
	ranked := RankDocuments(NewBM25(), "async runtime", corpus)
	if len(ranked) != 3 {
		t.Fatalf("want 3 docs, got %d", len(ranked))
	}
	if ranked[0].ID != "1" {
		t.Fatalf("want doc 1 first, got %q (scores %+v)", ranked[0].ID, ranked)
	}
}

func TestTFIDFZeroForNoOverlap(t *testing.T) {
	corpus := sampleCorpus()
	score := TFIDF{}.Score("zzzznonexistent", corpus, corpus[0])
	if score != 0 {
		t.Fatalf("want 0, got %f", score)
	}
}

func TestJaccardBounds(t *testing.T) {
	corpus := sampleCorpus()
	score := Jaccard{}.Score("async runtime", corpus, corpus[0])
	if score <= 0 || score > 1 {
		t.Fatalf("want score in (0,1], got %f", score)
	}
}

func TestJaccardToleratesTypoBetterThanTokenOverlap(t *testing.T) {
	corpus := []types.Document{{ID: "1", Title: "Kubernetes", Body: "kubernetes orchestration"}}
	score := NewJaccard().Score("kubernets", corpus, corpus[0])
	if score <= 0 {
		t.Fatalf("want positive trigram overlap despite the typo, got %f", score)
	}
}

func TestBM25FWeightsTitleAboveBody(t *testing.T) {
	corpus := []types.Document{
		{ID: "title-hit", Title: "kubernetes", Body: "unrelated content here"},
		{ID: "body-hit", Title: "unrelated", Body: "kubernetes appears only here"},
	}
	scorer := NewBM25F()
	titleScore := scorer.Score("kubernetes", corpus, corpus[0])
	bodyScore := scorer.Score("kubernetes", corpus, corpus[1])
	if titleScore <= bodyScore {
		t.Fatalf("want title match to outscore body match, got title=%f body=%f", titleScore, bodyScore)
	}
}

func TestBM25FWeightsDescriptionAndTags(t *testing.T) {
	corpus := []types.Document{
		{ID: "plain", Title: "x", Body: "x"},
		{ID: "tagged", Title: "x", Body: "x", Description: "kubernetes cluster notes", Tags: []string{"kubernetes"}},
	}
	scorer := NewBM25F()
	score := scorer.Score("kubernetes", corpus, corpus[1])
	baseline := scorer.Score("kubernetes", corpus, corpus[0])
	if score <= baseline {
		t.Fatalf("want description/tags match to score above a document without them, got %f vs %f", score, baseline)
	}
}

func TestTitleScorerCountsTitleHitsOnlydropped(t *testing.T) {
	corpus := sampleCorpus()
	score := TitleScorer{}.Score("go concurrency", corpus, corpus[1])
	if score != 2 {
		t.Fatalf("want 2 title hits, got %f", score)
	}
}

func TestJaroWinklerHandlesTypos(t *testing.T) {
	corpus := []types.Document{{ID: "1", Title: "Kubernetes"}}
	score := NewJaroWinkler().Score("Kubernets", corpus, corpus[0])
	if score < 0.9 {
		t.Fatalf("want high similarity for near-typo, got %f", score)
	}
}

func TestQueryRatioRequiresFuzzyMatches(t *testing.T) {
	corpus := []types.Document{{ID: "1", Body: "kubernetes orchestration platform"}}
	score := NewQueryRatio().Score("kubernetes", corpus, corpus[0])
	if score <= 0 {
		t.Fatalf("want positive score for exact token, got %f", score)
	}
	zero := NewQueryRatio().Score("zzzzzzzzzz", corpus, corpus[0])
	if zero != 0 {
		t.Fatalf("want 0 for no fuzzy matches, got %f", zero)
	}
}

func TestBlendWeighting(t *testing.T) {
	if got := Blend(1.0, 0.0, 1.0); got != 1.0 {
		t.Fatalf("want 1.0 at weight=1, got %f", got)
	}
	if got := Blend(1.0, 0.0, 0.0); got != 0.0 {
		t.Fatalf("want 0.0 at weight=0, got %f", got)
	}
	if got := Blend(1.0, 1.0, 0.5); got != 1.0 {
		t.Fatalf("want 1.0 when both inputs equal, got %f", got)
	}
}

func TestForNameDefaultsToTitleScorer(t *testing.T) {
	if _, ok := ForName("unknown").(TitleScorer); !ok {
		t.Fatalf("want TitleScorer fallback for unknown relevance function")
	}
}
