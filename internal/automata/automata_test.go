package automata

import (
	"strings"
	"testing"

	"github.com/terraphim/kgsearchd/internal/types"
)

func thesaurus(pairs ...string) types.Thesaurus {
	th := types.Thesaurus{}
	for i := 0; i < len(pairs); i += 2 {
		term, norm := pairs[i], pairs[i+1]
		th[term] = types.NormalizedTermValue{ID: uint64(i/2 + 1), Value: norm}
	}
	return th
}

func TestFindMatchesLeftmostLongest(t *testing.T) {
	// "software engineer" should win over the shorter "software" at the same start.
	th := thesaurus("software", "software", "software engineer", "software-engineer")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	matches := a.FindMatches("I am a software engineer today", true)
	if len(matches) != 1 {
		t.Fatalf("want 1 match, got %d: %+v", len(matches), matches)
	}
	if matches[0].NormalizedTerm != "software-engineer" {
		t.Fatalf("want longest match to win, got %q", matches[0].NormalizedTerm)
	}
}

func TestFindMatchesCaseInsensitive(t *testing.T) {
	th := thesaurus("FoO", "foo")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	matches := a.FindMatches("the foo bar", true)
	if len(matches) != 1 || matches[0].NormalizedTerm != "foo" {
		t.Fatalf("want case-insensitive match, got %+v", matches)
	}
}

func TestReplaceMatches(t *testing.T) {
	th := thesaurus("cat", "cat")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	out := a.ReplaceMatches("the cat sat")
	if string(out) != "the 1 sat" {
		t.Fatalf("got %q", out)
	}
}

func TestExtractParagraphsIncludeTerm(t *testing.T) {
	th := thesaurus("lorem", "lorem")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	text := "Intro\n\nlorem ipsum dolor sit amet,\nconsectetur adipiscing elit.\n\nNext paragraph."
	res := a.ExtractParagraphs(text, true)
	if len(res) != 1 {
		t.Fatalf("want 1 paragraph, got %d", len(res))
	}
	p := res[0].Text
	if !strings.HasPrefix(p, "lorem ipsum") {
		t.Fatalf("want prefix 'lorem ipsum', got %q", p)
	}
	if !strings.Contains(p, "consectetur") || strings.Contains(p, "Next paragraph") {
		t.Fatalf("paragraph bounds wrong: %q", p)
	}
}

func TestExtractParagraphsExcludeTerm(t *testing.T) {
	th := thesaurus("lorem", "lorem")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	text := "Intro\n\nlorem ipsum dolor sit amet\n\nTail"
	res := a.ExtractParagraphs(text, false)
	if len(res) != 1 {
		t.Fatalf("want 1 paragraph, got %d", len(res))
	}
	if !strings.HasPrefix(res[0].Text, " ipsum") {
		t.Fatalf("want prefix ' ipsum', got %q", res[0].Text)
	}
}

func TestExtractParagraphsMultipleMatchesSameParagraph(t *testing.T) {
	th := thesaurus("alpha", "norm", "beta", "norm")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	text := "alpha ... middle ... beta\nline 2\n\nTail"
	res := a.ExtractParagraphs(text, true)
	if len(res) != 2 {
		t.Fatalf("want 2 paragraphs, got %d", len(res))
	}
	for _, p := range res {
		if strings.Contains(p.Text, "Tail") {
			t.Fatalf("paragraph leaked into next: %q", p.Text)
		}
	}
}

func TestExtractParagraphsEndOfTextNoBlankLine(t *testing.T) {
	th := thesaurus("end", "end")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	text := "Prefix\n\nend of file with no blank line"
	res := a.ExtractParagraphs(text, true)
	if len(res) != 1 || !strings.HasSuffix(res[0].Text, "blank line") {
		t.Fatalf("got %+v", res)
	}
}

func TestExtractParagraphsCRLF(t *testing.T) {
	th := thesaurus("term", "term")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	text := "p1\r\n\r\nterm starts here and continues\r\nline2\r\n\r\nnext"
	res := a.ExtractParagraphs(text, true)
	if len(res) != 1 {
		t.Fatalf("want 1 paragraph, got %d", len(res))
	}
	if !strings.Contains(res[0].Text, "line2") || strings.Contains(res[0].Text, "next") {
		t.Fatalf("got %q", res[0].Text)
	}
}

func TestExtractParagraphsNoMatches(t *testing.T) {
	th := thesaurus("x", "x")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}
	res := a.ExtractParagraphs("no paragraphs with match", true)
	if len(res) != 0 {
		t.Fatalf("want 0, got %d", len(res))
	}
}

func TestBuildEmptyThesaurus(t *testing.T) {
	if _, err := Build(types.Thesaurus{}); err == nil {
		t.Fatal("want error for empty thesaurus")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	th := thesaurus("software", "software", "software engineer", "software-engineer", "FoO", "foo")
	a, err := Build(th)
	if err != nil {
		t.Fatal(err)
	}

	data, err := a.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	restored, err := Deserialize(data)
	if err != nil {
		t.Fatal(err)
	}

	if restored.Len() != a.Len() {
		t.Fatalf("want Len %d, got %d", a.Len(), restored.Len())
	}

	text := "I am a software engineer; the foo bar."
	want := a.FindMatches(text, true)
	got := restored.FindMatches(text, true)
	if len(want) != len(got) {
		t.Fatalf("want %d matches, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("match %d differs: want %+v, got %+v", i, want[i], got[i])
		}
	}
}
