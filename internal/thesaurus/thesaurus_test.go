package thesaurus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/terraphim/kgsearchd/internal/types"
)

func TestInlineBuilderResolvesSynonymChains(t *testing.T) {
	b := NewInlineBuilder(map[string][]string{
		"kubernetes": {"k8s"},
		"k8s":        {"container-orchestrator"},
	})
	th, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}

	a, ok := th.Get("kubernetes")
	if !ok {
		t.Fatal("want kubernetes present")
	}
	b2, ok := th.Get("container-orchestrator")
	if !ok {
		t.Fatal("want container-orchestrator present")
	}
	if a.ID != b2.ID {
		t.Fatalf("want chained synonyms to share one ID, got %d vs %d", a.ID, b2.ID)
	}
}

func TestInlineBuilderEmptyErrors(t *testing.T) {
	if _, err := NewInlineBuilder(nil).Build(); err == nil {
		t.Fatal("want error for empty inline map")
	}
}

func TestLogseqBuilderParsesAliases(t *testing.T) {
	dir := t.TempDir()
	content := "---\ntitle:: Software Engineer\naliases:: SWE, Software Developer\n---\nBody text.\n"
	if err := os.WriteFile(filepath.Join(dir, "software_engineer.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	th, err := NewLogseqBuilder(dir).Build()
	if err != nil {
		t.Fatal(err)
	}
	main, ok := th.Get("software_engineer")
	if !ok {
		t.Fatal("want page term present")
	}
	alias, ok := th.Get("SWE")
	if !ok {
		t.Fatal("want alias present")
	}
	if main.ID != alias.ID {
		t.Fatalf("want alias to resolve to same term, got %d vs %d", main.ID, alias.ID)
	}
}

func TestRemoteBuilderFlatShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"k8s": "kubernetes"})
	}))
	defer srv.Close()

	th, err := NewRemoteBuilder(srv.URL).Build()
	if err != nil {
		t.Fatal(err)
	}
	v, ok := th.Get("k8s")
	if !ok || v.Value != "kubernetes" {
		t.Fatalf("got %+v ok=%v", v, ok)
	}
}

func TestRemoteBuilderTripleShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"term": "k8s", "nterm": "kubernetes", "id": 1},
		})
	}))
	defer srv.Close()

	th, err := NewRemoteBuilder(srv.URL).Build()
	if err != nil {
		t.Fatal(err)
	}
	v, ok := th.Get("k8s")
	if !ok || v.Value != "kubernetes" || v.ID != 1 {
		t.Fatalf("got %+v ok=%v", v, ok)
	}
}

func TestForRolePrefersRemoteOverLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"remote": "remote"})
	}))
	defer srv.Close()

	role := types.Role{
		Name:           "test",
		TerraphimItHub: srv.URL,
		KG:             &types.KnowledgeGraphLocal{Path: "/does/not/exist"},
	}
	th, err := ForRole(role)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := th.Get("remote"); !ok {
		t.Fatal("want remote thesaurus used")
	}
}

func TestForRoleErrorsWithNoSource(t *testing.T) {
	if _, err := ForRole(types.Role{Name: "bare"}); err == nil {
		t.Fatal("want error for role with no thesaurus source")
	}
}
