// Package thesaurus builds [types.Thesaurus] values from a role's
// configured knowledge-graph source: a local Logseq-style markdown
// directory, a remote JSON document, or an inline literal map.
//
// Synonym chains (A is a synonym of B, B is a synonym of C) are resolved to
// a single canonical representative using a union-find over canonicalized
// term strings, so every surface form in a chain maps to the same
// [types.NormalizedTermValue] regardless of which page declared it first.
package thesaurus

import (
	"fmt"
	"sort"

	"github.com/terraphim/kgsearchd/internal/types"
)

// Builder constructs a [types.Thesaurus] for a role.
type Builder interface {
	Build() (types.Thesaurus, error)
}

// unionFind resolves synonym chains to a single canonical term per group.
type unionFind struct {
	parent map[string]string
	label  map[string]string // representative -> preferred display value
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[string]string{}, label: map[string]string{}}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		return x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

// union merges the groups containing a and b. The label is kept from
// whichever side already has one, preferring a's.
func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	u.parent[rb] = ra
	if u.label[ra] == "" {
		u.label[ra] = u.label[rb]
	}
}

// setLabel records the preferred display value for the group containing term.
func (u *unionFind) setLabel(term, label string) {
	r := u.find(term)
	if u.label[r] == "" {
		u.label[r] = label
	}
}

// buildThesaurus assigns a stable numeric ID to each canonical group (sorted
// by representative for determinism) and maps every canonicalized surface
// form in the group to that value.
func (u *unionFind) buildThesaurus(groups map[string][]string) types.Thesaurus {
	reps := make([]string, 0, len(groups))
	for rep := range groups {
		reps = append(reps, rep)
	}
	sort.Strings(reps)

	th := types.Thesaurus{}
	var id uint64 = 1
	for _, rep := range reps {
		terms := groups[rep]
		val := types.NormalizedTermValue{ID: id, Value: u.label[rep]}
		if val.Value == "" {
			val.Value = rep
		}
		for _, t := range terms {
			th[types.Canonicalize(t)] = val
		}
		id++
	}
	return th
}

// groupsByRepresentative returns every canonicalized term keyed by its
// union-find representative.
func (u *unionFind) groupsByRepresentative(allTerms []string) map[string][]string {
	groups := map[string][]string{}
	for _, t := range allTerms {
		c := types.Canonicalize(t)
		rep := u.find(c)
		groups[rep] = append(groups[rep], t)
	}
	return groups
}

// ForRole selects and runs the appropriate [Builder] for role, in priority
// order: a remote JSON URL (role.TerraphimItHub), then a local Logseq
// directory (role.KG). It never selects an [InlineBuilder]; a role's config
// has no field for an inline synonym map.
func ForRole(role types.Role) (types.Thesaurus, error) {
	switch {
	case role.TerraphimItHub != "":
		return NewRemoteBuilder(role.TerraphimItHub).Build()
	case role.KG != nil && role.KG.Path != "":
		return NewLogseqBuilder(role.KG.Path).Build()
	default:
		return nil, fmt.Errorf("thesaurus: role %q has no thesaurus source configured", role.Name)
	}
}
