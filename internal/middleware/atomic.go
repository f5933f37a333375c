package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/terraphim/kgsearchd/internal/types"
)

// AtomicIndexer queries an Atomic Data server's search endpoint
// (https://atomicdata.dev) for resources matching the needle and converts
// each hit into a document. Grounded on the REST-indexer shape used by the
// original implementation's AtomicServerIndexer, reduced here to the one
// HTTP call Atomic's /search endpoint exposes.
type AtomicIndexer struct {
	Client *http.Client
}

// NewAtomicIndexer returns an AtomicIndexer with a 15s HTTP timeout.
func NewAtomicIndexer() *AtomicIndexer {
	return &AtomicIndexer{Client: &http.Client{Timeout: 15 * time.Second}}
}

type atomicSearchResponse struct {
	Results []atomicResource `json:"results"`
}

type atomicResource struct {
	Subject     string `json:"@id"`
	Name        string `json:"https://atomicdata.dev/properties/name"`
	Description string `json:"https://atomicdata.dev/properties/description"`
}

func (a *AtomicIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	endpoint, err := url.Parse(haystack.Location)
	if err != nil {
		return types.Index{}, fmt.Errorf("atomic: parse location %q: %w", haystack.Location, err)
	}
	endpoint.Path = joinPath(endpoint.Path, "search")
	q := endpoint.Query()
	q.Set("q", needle)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return types.Index{}, fmt.Errorf("atomic: build request: %w", err)
	}
	if token, ok := haystack.Extra["agent_token"]; ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return types.Index{}, fmt.Errorf("atomic: fetch %q: %w", endpoint.String(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.Index{}, fmt.Errorf("atomic: fetch %q: status %d", endpoint.String(), resp.StatusCode)
	}

	var parsed atomicSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return types.Index{}, fmt.Errorf("atomic: decode response: %w", err)
	}

	idx := types.NewIndex()
	for _, r := range parsed.Results {
		idx.Insert(types.Document{
			ID:          r.Subject,
			Title:       r.Name,
			Body:        r.Description,
			Description: r.Description,
			URL:         r.Subject,
		})
	}
	return idx, nil
}

func joinPath(base, suffix string) string {
	if base == "" {
		return "/" + suffix
	}
	if base[len(base)-1] == '/' {
		return base + suffix
	}
	return base + "/" + suffix
}
