package thesaurus

import (
	"fmt"

	"github.com/terraphim/kgsearchd/internal/types"
)

// InlineBuilder builds a thesaurus directly from an in-memory synonym map
// supplied by the caller rather than a file or remote source. [ForRole] does
// not use it, so no role config reaches it. Synonym groups are still resolved
// through the union-find so inline definitions compose correctly with
// chains like {"k8s": "kubernetes", "kubernetes": "container-orchestrator"}.
type InlineBuilder struct {
	synonyms map[string][]string // canonical term -> extra surface forms
}

// NewInlineBuilder returns a [Builder] over an explicit synonym map keyed by
// canonical term.
func NewInlineBuilder(synonyms map[string][]string) *InlineBuilder {
	return &InlineBuilder{synonyms: synonyms}
}

func (b *InlineBuilder) Build() (types.Thesaurus, error) {
	if len(b.synonyms) == 0 {
		return nil, fmt.Errorf("thesaurus: inline builder has no entries")
	}

	uf := newUnionFind()
	var allTerms []string
	for term, aliases := range b.synonyms {
		allTerms = append(allTerms, term)
		uf.setLabel(types.Canonicalize(term), term)
		for _, alias := range aliases {
			allTerms = append(allTerms, alias)
			uf.union(types.Canonicalize(term), types.Canonicalize(alias))
		}
	}

	groups := uf.groupsByRepresentative(allTerms)
	return uf.buildThesaurus(groups), nil
}
