// Package automata implements an Aho-Corasick multi-pattern matcher over a
// thesaurus of normalized terms, with leftmost-longest, ASCII case-insensitive
// match semantics.
//
// No library in the example pack exposes byte positions, leftmost-longest
// tie-breaking, byte-safe replace-all, and paragraph extraction together
// (see DESIGN.md), so the automaton is built directly: a trie with
// Aho-Corasick failure links, constructed once per thesaurus and reused
// across searches.
package automata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/terraphim/kgsearchd/internal/types"
)

// Matched describes a single match of a thesaurus term against a text.
type Matched struct {
	// Term is the literal surface form found in the source text.
	Term string
	// ID is the normalized term's numeric identifier.
	ID uint64
	// NormalizedTerm is the canonical value the surface form resolves to.
	NormalizedTerm string
	// Start and End are byte offsets into the searched text (End exclusive).
	Start int
	End   int
}

// node is a single trie state.
type node struct {
	children map[byte]int
	fail     int
	output   []int // indices into Automaton.patterns ending at this state
}

// Automaton is a built Aho-Corasick matcher over a fixed thesaurus. It is
// immutable and safe for concurrent read-only use once returned by [Build].
type Automaton struct {
	patterns []string                  // lowercased pattern bytes, index-aligned with values
	values   []types.NormalizedTermValue
	original []string // original-case surface form, for Matched.Term
	nodes    []node
}

const root = 0

// Build compiles thesaurus into an [Automaton]. Patterns are matched
// ASCII case-insensitively; thesaurus keys are used as the literal patterns,
// so callers normally pass already-canonicalized keys as produced by the
// thesaurus builders.
func Build(thesaurus types.Thesaurus) (*Automaton, error) {
	if len(thesaurus) == 0 {
		return nil, fmt.Errorf("automata: build: thesaurus is empty")
	}

	a := &Automaton{
		nodes: []node{{children: map[byte]int{}}},
	}

	for term, val := range thesaurus {
		lower := strings.ToLower(term)
		idx := len(a.patterns)
		a.patterns = append(a.patterns, lower)
		a.values = append(a.values, val)
		a.original = append(a.original, term)
		a.insert(lower, idx)
	}

	a.buildFailureLinks()
	return a, nil
}

// insert adds pattern into the trie, recording idx in the output set of its
// terminal node.
func (a *Automaton) insert(pattern string, idx int) {
	state := root
	for i := 0; i < len(pattern); i++ {
		b := pattern[i]
		next, ok := a.nodes[state].children[b]
		if !ok {
			a.nodes = append(a.nodes, node{children: map[byte]int{}})
			next = len(a.nodes) - 1
			a.nodes[state].children[b] = next
		}
		state = next
	}
	a.nodes[state].output = append(a.nodes[state].output, idx)
}

// buildFailureLinks runs the standard BFS construction of Aho-Corasick
// failure links and merges output sets along those links.
func (a *Automaton) buildFailureLinks() {
	queue := make([]int, 0, len(a.nodes))
	for b, child := range a.nodes[root].children {
		_ = b
		a.nodes[child].fail = root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for b, v := range a.nodes[u].children {
			f := a.nodes[u].fail
			for f != root {
				if _, ok := a.nodes[f].children[b]; ok {
					break
				}
				f = a.nodes[f].fail
			}
			if fc, ok := a.nodes[f].children[b]; ok && fc != v {
				a.nodes[v].fail = fc
			} else {
				a.nodes[v].fail = root
			}
			a.nodes[v].output = append(a.nodes[v].output, a.nodes[a.nodes[v].fail].output...)
			queue = append(queue, v)
		}
	}
}

// step follows the goto function from state on byte b, falling back through
// failure links when no direct transition exists.
func (a *Automaton) step(state int, b byte) int {
	for {
		if next, ok := a.nodes[state].children[b]; ok {
			return next
		}
		if state == root {
			return root
		}
		state = a.nodes[state].fail
	}
}

// candidate is an internal match before leftmost-longest resolution.
type candidate struct {
	start, end int
	patIdx     int
}

// scan runs the automaton over the ASCII-lowercased text and returns every
// candidate match (including overlapping ones), in no particular order.
func (a *Automaton) scan(text string) []candidate {
	state := root
	var cands []candidate
	for i := 0; i < len(text); i++ {
		b := text[i]
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		state = a.step(state, b)
		for _, pidx := range a.nodes[state].output {
			plen := len(a.patterns[pidx])
			end := i + 1
			start := end - plen
			cands = append(cands, candidate{start: start, end: end, patIdx: pidx})
		}
	}
	return cands
}

// leftmostLongest resolves a candidate set into the non-overlapping
// leftmost-longest match sequence used by [MatchKind::LeftmostLongest] in the
// reference implementation: scan left to right, at each position take the
// candidate with the smallest start and, among ties, the longest length,
// then resume scanning after its end.
func leftmostLongest(cands []candidate) []candidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		return cands[i].end > cands[j].end
	})

	var out []candidate
	pos := 0
	for _, c := range cands {
		if c.start < pos {
			continue
		}
		out = append(out, c)
		pos = c.end
	}
	return out
}

// FindMatches returns every leftmost-longest match of the automaton's
// patterns in text. When returnPositions is false, Start/End are left zero.
func (a *Automaton) FindMatches(text string, returnPositions bool) []Matched {
	cands := leftmostLongest(a.scan(text))
	out := make([]Matched, 0, len(cands))
	for _, c := range cands {
		val := a.values[c.patIdx]
		m := Matched{
			Term:           text[c.start:c.end],
			ID:             val.ID,
			NormalizedTerm: val.Value,
		}
		if returnPositions {
			m.Start, m.End = c.start, c.end
		}
		out = append(out, m)
	}
	return out
}

// FindMatchesIDs returns the normalized term IDs for every leftmost-longest
// match, in text order, including duplicates.
func (a *Automaton) FindMatchesIDs(text string) []uint64 {
	matches := a.FindMatches(text, false)
	ids := make([]uint64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids
}

// ReplaceMatches replaces every leftmost-longest match in text with the
// decimal string of its normalized term ID, leaving unmatched bytes intact.
func (a *Automaton) ReplaceMatches(text string) []byte {
	cands := leftmostLongest(a.scan(text))
	var out []byte
	pos := 0
	for _, c := range cands {
		out = append(out, text[pos:c.start]...)
		out = append(out, []byte(fmt.Sprintf("%d", a.values[c.patIdx].ID))...)
		pos = c.end
	}
	out = append(out, text[pos:]...)
	return out
}

// Paragraph pairs a match with the paragraph-bounded text slice around it.
type Paragraph struct {
	Match Matched
	Text  string
}

// blankLineSeqs are the paragraph separators searched for, longest first so
// CRLF is preferred over a bare LF split inside it.
var blankLineSeqs = []string{"\r\n\r\n", "\n\n"}

// ExtractParagraphs returns one [Paragraph] per leftmost-longest match. Each
// slice runs from the match start (includeTerm true) or match end
// (includeTerm false) forward to the next blank-line paragraph boundary, or
// to the end of text if no further boundary exists.
func (a *Automaton) ExtractParagraphs(text string, includeTerm bool) []Paragraph {
	matches := a.FindMatches(text, true)
	out := make([]Paragraph, 0, len(matches))
	for _, m := range matches {
		sliceStart := m.Start
		if !includeTerm {
			sliceStart = m.End
		}

		sliceEnd := len(text)
		searchFrom := m.Start
		if searchFrom < 0 {
			searchFrom = 0
		}
		rest := text[searchFrom:]
		best := -1
		for _, sep := range blankLineSeqs {
			if i := strings.Index(rest, sep); i >= 0 && (best == -1 || searchFrom+i < best) {
				best = searchFrom + i
			}
		}
		if best >= 0 {
			sliceEnd = best
		}

		if sliceStart > sliceEnd {
			sliceStart = sliceEnd
		}
		out = append(out, Paragraph{Match: m, Text: text[sliceStart:sliceEnd]})
	}
	return out
}

// Len returns the number of patterns compiled into the automaton.
func (a *Automaton) Len() int {
	return len(a.patterns)
}

// AutomatonRecord names a role's persistence key for its built automaton,
// implementing persistence.Persistable. The stored payload is whatever
// [Automaton.Serialize] produced — the Role field only derives the key.
type AutomatonRecord struct {
	Role string
}

// GetKey implements persistence.Persistable.
func (r AutomatonRecord) GetKey() string {
	return "automaton_" + types.Canonicalize(r.Role)
}

// serializedNode is node's JSON-safe form: children is keyed by decimal byte
// value since JSON object keys must be strings.
type serializedNode struct {
	Children map[string]int `json:"children"`
	Fail     int            `json:"fail"`
	Output   []int          `json:"output"`
}

// serializedAutomaton is the wire form [Automaton.Serialize] writes and
// [Deserialize] reads back — a structural mirror of Automaton's unexported
// fields.
type serializedAutomaton struct {
	Patterns []string                    `json:"patterns"`
	Values   []types.NormalizedTermValue `json:"values"`
	Original []string                    `json:"original"`
	Nodes    []serializedNode            `json:"nodes"`
}

// Serialize encodes the automaton to bytes. [Deserialize] reconstructs a
// structurally equal *Automaton from the result.
func (a *Automaton) Serialize() ([]byte, error) {
	sa := serializedAutomaton{
		Patterns: a.patterns,
		Values:   a.values,
		Original: a.original,
		Nodes:    make([]serializedNode, len(a.nodes)),
	}
	for i, n := range a.nodes {
		sn := serializedNode{
			Fail:     n.fail,
			Output:   append([]int(nil), n.output...),
			Children: make(map[string]int, len(n.children)),
		}
		for b, next := range n.children {
			sn.Children[strconv.Itoa(int(b))] = next
		}
		sa.Nodes[i] = sn
	}

	data, err := json.Marshal(sa)
	if err != nil {
		return nil, fmt.Errorf("automata: serialize: %w", err)
	}
	return data, nil
}

// Deserialize reconstructs an *Automaton previously written by
// [Automaton.Serialize]. The result is ready for [Automaton.FindMatches]
// without rebuilding failure links — those were already folded into each
// node's output set at Build time and are serialized as-is.
func Deserialize(data []byte) (*Automaton, error) {
	var sa serializedAutomaton
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("automata: deserialize: %w", err)
	}

	a := &Automaton{
		patterns: sa.Patterns,
		values:   sa.Values,
		original: sa.Original,
		nodes:    make([]node, len(sa.Nodes)),
	}
	for i, sn := range sa.Nodes {
		n := node{
			fail:     sn.Fail,
			output:   append([]int(nil), sn.Output...),
			children: make(map[byte]int, len(sn.Children)),
		}
		for bs, next := range sn.Children {
			bi, err := strconv.Atoi(bs)
			if err != nil {
				return nil, fmt.Errorf("automata: deserialize: bad child byte %q: %w", bs, err)
			}
			n.children[byte(bi)] = next
		}
		a.nodes[i] = n
	}
	return a, nil
}
