package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/terraphim/kgsearchd/internal/config"
	"github.com/terraphim/kgsearchd/internal/middleware"
	"github.com/terraphim/kgsearchd/internal/types"
)

type stubIndexer struct {
	docs types.Index
}

func (s stubIndexer) Index(ctx context.Context, needle string, h types.Haystack) (types.Index, error) {
	return s.docs, nil
}

func newTestState(t *testing.T) *config.State {
	t.Helper()
	kgDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(kgDir, "kubernetes.md"), []byte("---\ntitle:: Kubernetes\nsynonyms:: k8s\n---\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
default_role: engineer
roles:
  engineer:
    name: engineer
    relevance_function: bm25
    kg:
      path: ` + kgDir + `
    haystacks:
      - location: stub
        service: ripgrep
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := config.NewState(path, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestPipelineSearchRanksAndPaginates(t *testing.T) {
	state := newTestState(t)

	docs := types.NewIndex()
	docs.Insert(types.Document{ID: "doc-1", Title: "Kubernetes basics", Body: "An introduction to kubernetes and k8s clusters."})
	docs.Insert(types.Document{ID: "doc-2", Title: "Unrelated", Body: "Nothing to do with the query at all."})

	dispatcher := middleware.NewDispatcher()
	dispatcher.Register(types.ServiceRipgrep, func(h types.Haystack) (middleware.Indexer, error) {
		return stubIndexer{docs: docs}, nil
	})

	p := New(state, dispatcher, nil, nil)

	result, err := p.Search(context.Background(), types.SearchQuery{Search: "kubernetes", Role: "engineer", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("got %d documents, want 1", len(result.Documents))
	}
	if result.Total != 2 {
		t.Fatalf("got total %d, want 2", result.Total)
	}
	if result.Documents[0].ID != "doc-1" {
		t.Fatalf("got top result %q, want doc-1", result.Documents[0].ID)
	}
}

func TestPipelineSearchUnknownRoleReturnsError(t *testing.T) {
	state := newTestState(t)
	p := New(state, middleware.NewDispatcher(), nil, nil)

	_, err := p.Search(context.Background(), types.SearchQuery{Search: "x", Role: "missing"})
	if err == nil {
		t.Fatal("want error for unknown role")
	}
	serr, ok := err.(*Error)
	if !ok {
		t.Fatalf("got error type %T, want *Error", err)
	}
	if serr.Kind != KindRoleNotFound {
		t.Fatalf("got kind %q, want role_not_found", serr.Kind)
	}
	if serr.Category() != CategoryClient {
		t.Fatalf("got category %q, want client", serr.Category())
	}
}

type stubSummarizer struct{ summary string }

func (s stubSummarizer) Summarize(ctx context.Context, title, body string) (string, error) {
	return s.summary, nil
}

func TestPipelineSummarizesTopResults(t *testing.T) {
	state := newTestState(t)

	docs := types.NewIndex()
	docs.Insert(types.Document{ID: "doc-1", Title: "Kubernetes basics", Body: "kubernetes k8s clusters"})
	dispatcher := middleware.NewDispatcher()
	dispatcher.Register(types.ServiceRipgrep, func(h types.Haystack) (middleware.Indexer, error) {
		return stubIndexer{docs: docs}, nil
	})

	p := New(state, dispatcher, stubSummarizer{summary: "a summary"}, nil)

	result, err := p.Search(context.Background(), types.SearchQuery{Search: "kubernetes", Role: "engineer"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("got %d documents, want 1", len(result.Documents))
	}
	if result.Documents[0].Description != "a summary" {
		t.Fatalf("got description %q, want summary applied", result.Documents[0].Description)
	}
}
