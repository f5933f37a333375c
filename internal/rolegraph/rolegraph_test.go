package rolegraph

import (
	"testing"

	"github.com/terraphim/kgsearchd/internal/automata"
)

func m(id uint64) automata.Matched { return automata.Matched{ID: id} }

func TestInsertDocumentBuildsNodesAndEdges(t *testing.T) {
	g := New()
	g.InsertDocument("doc1", []automata.Matched{m(1), m(2), m(3)})

	if g.NodeCount() != 3 {
		t.Fatalf("want 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Fatalf("want 2 edges, got %d", g.EdgeCount())
	}
}

func TestSupersessionIsIdempotent(t *testing.T) {
	g := New()
	matches := []automata.Matched{m(1), m(2)}

	g.InsertDocument("doc1", matches)
	firstNodes, firstEdges := g.NodeCount(), g.EdgeCount()

	// Re-indexing the identical document must not inflate weights.
	g.InsertDocument("doc1", matches)
	if g.NodeCount() != firstNodes || g.EdgeCount() != firstEdges {
		t.Fatalf("re-index changed graph shape: nodes %d->%d edges %d->%d",
			firstNodes, g.NodeCount(), firstEdges, g.EdgeCount())
	}

	results := g.Query([]uint64{1, 2}, OperatorAnd)
	if len(results) != 1 || results[0].Score != 1 {
		t.Fatalf("want single doc with edge weight 1, got %+v", results)
	}
}

func TestSupersessionOnChangedDocument(t *testing.T) {
	g := New()
	g.InsertDocument("doc1", []automata.Matched{m(1), m(2)})
	g.InsertDocument("doc1", []automata.Matched{m(3)})

	if g.NodeCount() != 1 {
		t.Fatalf("want only term 3 left, got %d nodes", g.NodeCount())
	}
	if g.EdgeCount() != 0 {
		t.Fatalf("want 0 edges after resupersede, got %d", g.EdgeCount())
	}
}

func TestRemoveDocument(t *testing.T) {
	g := New()
	g.InsertDocument("doc1", []automata.Matched{m(1), m(2)})
	g.RemoveDocument("doc1")
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Fatalf("want empty graph after removal, got nodes=%d edges=%d", g.NodeCount(), g.EdgeCount())
	}
}

func TestQueryAndOperatorRestrictsToAllTerms(t *testing.T) {
	g := New()
	g.InsertDocument("doc1", []automata.Matched{m(1), m(2)})
	g.InsertDocument("doc2", []automata.Matched{m(1)})

	results := g.Query([]uint64{1, 2}, OperatorAnd)
	if len(results) != 1 || results[0].DocID != "doc1" {
		t.Fatalf("want only doc1, got %+v", results)
	}
}

func TestQueryOrOperatorIncludesAnyTerm(t *testing.T) {
	g := New()
	g.InsertDocument("doc1", []automata.Matched{m(1), m(2)})
	g.InsertDocument("doc2", []automata.Matched{m(1)})

	results := g.Query([]uint64{1, 2}, OperatorOr)
	if len(results) != 2 {
		t.Fatalf("want both docs, got %+v", results)
	}
}

func TestQueryTieBreaksByDocID(t *testing.T) {
	g := New()
	g.InsertDocument("zeta", []automata.Matched{m(1)})
	g.InsertDocument("alpha", []automata.Matched{m(1)})

	results := g.Query([]uint64{1}, OperatorOr)
	if len(results) != 2 || results[0].DocID != "alpha" {
		t.Fatalf("want alpha first on tie, got %+v", results)
	}
}
