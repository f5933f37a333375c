package thesaurus

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/terraphim/kgsearchd/internal/types"
)

// LogseqBuilder builds a thesaurus by walking a directory of Logseq-style
// markdown pages. Each page's filename (with Logseq's "___" hierarchy
// separator converted back to "/") is the canonical term for that page; a
// Logseq property line of the form "aliases:: a, b, c" or
// "synonyms:: a, b, c" declares additional surface forms that resolve to
// the same term.
type LogseqBuilder struct {
	dir string
}

// NewLogseqBuilder returns a [Builder] rooted at dir.
func NewLogseqBuilder(dir string) *LogseqBuilder {
	return &LogseqBuilder{dir: dir}
}

var aliasPrefixes = []string{"aliases::", "synonyms::", "alias::"}

func (b *LogseqBuilder) Build() (types.Thesaurus, error) {
	uf := newUnionFind()
	var allTerms []string

	err := filepath.WalkDir(b.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		term := strings.ReplaceAll(base, "___", "/")
		allTerms = append(allTerms, term)
		uf.setLabel(types.Canonicalize(term), term)

		aliases, err := parseAliases(path)
		if err != nil {
			slog.Warn("thesaurus: skipping unreadable logseq page", "path", path, "err", err)
			return nil
		}
		for _, alias := range aliases {
			allTerms = append(allTerms, alias)
			uf.union(types.Canonicalize(term), types.Canonicalize(alias))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("thesaurus: walk logseq dir %q: %w", b.dir, err)
	}
	if len(allTerms) == 0 {
		return nil, fmt.Errorf("thesaurus: logseq dir %q contains no pages", b.dir)
	}

	groups := uf.groupsByRepresentative(allTerms)
	return uf.buildThesaurus(groups), nil
}

// parseAliases scans a markdown page for Logseq alias/synonym property
// lines and returns the declared surface forms.
func parseAliases(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var aliases []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(line)
		for _, prefix := range aliasPrefixes {
			if strings.HasPrefix(lower, prefix) {
				rest := strings.TrimSpace(line[len(prefix):])
				for _, part := range strings.Split(rest, ",") {
					part = strings.Trim(strings.TrimSpace(part), "[]#")
					if part != "" {
						aliases = append(aliases, part)
					}
				}
			}
		}
	}
	return aliases, scanner.Err()
}
