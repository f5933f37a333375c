package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/terraphim/kgsearchd/internal/config"
	"github.com/terraphim/kgsearchd/internal/middleware"
	"github.com/terraphim/kgsearchd/internal/search"
	"github.com/terraphim/kgsearchd/internal/types"
)

type stubIndexer struct{ docs types.Index }

func (s stubIndexer) Index(ctx context.Context, needle string, h types.Haystack) (types.Index, error) {
	return s.docs, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	kgDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(kgDir, "kubernetes.md"), []byte("---\ntitle:: Kubernetes\n---\n"), 0o644); err != nil {
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

	state, err := config.NewState(path, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(state.Stop)

	docs := types.NewIndex()
	docs.Insert(types.Document{ID: "doc-1", Title: "Kubernetes basics", Body: "kubernetes clusters"})

	dispatcher := middleware.NewDispatcher()
	dispatcher.Register(types.ServiceRipgrep, func(h types.Haystack) (middleware.Indexer, error) {
		return stubIndexer{docs: docs}, nil
	})

	pipeline := search.New(state, dispatcher, nil, nil)
	return New(pipeline, state)
}

func TestHandleSearchReturnsResults(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Register(mux)

	body, _ := json.Marshal(searchRequest{SearchTerm: "kubernetes", Role: "engineer"})
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
}

func TestHandleSearchUnknownRoleReturns400(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Register(mux)

	body, _ := json.Marshal(searchRequest{SearchTerm: "x", Role: "ghost"})
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleHealthReturnsLiteralOK(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "OK")
	}
}

func TestHandleGetConfigReturnsCurrentConfig(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var cfg config.Config
	if err := json.NewDecoder(rec.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if _, ok := cfg.Roles["engineer"]; !ok {
		t.Fatal("want engineer role present in returned config")
	}
}

func TestHandlePostDocumentIndexesDocument(t *testing.T) {
	s := newTestServer(t)
	mux := http.NewServeMux()
	s.Register(mux)

	doc := types.Document{ID: "doc-2", Title: "Extra", Body: "kubernetes notes"}
	body, _ := json.Marshal(doc)
	req := httptest.NewRequest(http.MethodPost, "/documents?role=engineer", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
}
