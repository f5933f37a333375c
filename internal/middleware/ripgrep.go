package middleware

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/terraphim/kgsearchd/internal/types"
)

// RipgrepIndexer searches a local directory tree with the ripgrep binary
// and turns each matching file into one document whose body is the full
// file content. Grounded on the local-grep haystack from the original
// implementation (terraphim_middleware::indexer::RipgrepIndexer), which
// shells out to `rg --json` rather than reimplementing a grep engine.
type RipgrepIndexer struct {
	// Binary is the ripgrep executable name or path. Defaults to "rg".
	Binary string
}

// NewRipgrepIndexer returns a RipgrepIndexer using the "rg" binary on PATH.
func NewRipgrepIndexer() *RipgrepIndexer {
	return &RipgrepIndexer{Binary: "rg"}
}

func (r *RipgrepIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	bin := r.Binary
	if bin == "" {
		bin = "rg"
	}

	args := []string{"--files-with-matches", "--fixed-strings", "--ignore-case", "--", needle, haystack.Location}
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			// rg exits 1 when there are simply no matches.
			return types.NewIndex(), nil
		}
		return types.Index{}, fmt.Errorf("ripgrep: run %s: %w", bin, err)
	}

	idx := types.NewIndex()
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		path := scanner.Text()
		doc, err := readFileDocument(path, haystack.Location)
		if err != nil {
			continue
		}
		idx.Insert(doc)
	}
	return idx, scanner.Err()
}

func readFileDocument(path, root string) (types.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return types.Document{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	sum := sha1.Sum([]byte(path))
	id := hex.EncodeToString(sum[:8])

	lines := strings.SplitN(string(content), "\n", 2)
	title := strings.TrimSpace(lines[0])
	if title == "" {
		title = rel
	}

	return types.Document{
		ID:         id,
		Title:      title,
		Body:       string(content),
		URL:        "file://" + path,
		ModifiedAt: info.ModTime(),
		Tags:       []string{"size:" + strconv.FormatInt(info.Size(), 10)},
	}, nil
}
