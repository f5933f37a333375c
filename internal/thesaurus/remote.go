package thesaurus

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/terraphim/kgsearchd/internal/types"
)

// RemoteBuilder fetches a thesaurus definition as JSON from a remote
// Terraphim-IT-Hub style URL. The wire format is permissive: the top-level
// JSON value may be
//
//  1. an object mapping surface form -> normalized value string,
//  2. an object mapping surface form -> {"id": N, "value": "..."}, or
//  3. an array of {"term": "...", "nterm": "...", "id": N} triples.
//
// All three shapes are accepted so a role can point at a hand-written file
// or a generated export without a conversion step.
type RemoteBuilder struct {
	url    string
	client *http.Client
}

// NewRemoteBuilder returns a [Builder] that fetches url with a 10s timeout.
func NewRemoteBuilder(url string) *RemoteBuilder {
	return &RemoteBuilder{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

type triple struct {
	Term  string `json:"term"`
	NTerm string `json:"nterm"`
	ID    uint64 `json:"id"`
}

func (b *RemoteBuilder) Build() (types.Thesaurus, error) {
	req, err := http.NewRequest(http.MethodGet, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("thesaurus: remote request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("thesaurus: remote fetch %q: %w", b.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thesaurus: remote fetch %q: status %d", b.url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("thesaurus: read remote body: %w", err)
	}

	return parseRemoteBody(body)
}

func parseRemoteBody(body []byte) (types.Thesaurus, error) {
	// Shape 3: array of triples.
	var triples []triple
	if err := json.Unmarshal(body, &triples); err == nil && len(triples) > 0 {
		th := types.Thesaurus{}
		for _, t := range triples {
			th[types.Canonicalize(t.Term)] = types.NormalizedTermValue{ID: t.ID, Value: t.NTerm}
		}
		return th, nil
	}

	// Shape 2: object of structured values.
	var structured map[string]types.NormalizedTermValue
	if err := json.Unmarshal(body, &structured); err == nil {
		valid := false
		for _, v := range structured {
			if v.Value != "" {
				valid = true
				break
			}
		}
		if valid {
			th := types.Thesaurus{}
			var nextID uint64 = 1
			for term, v := range structured {
				if v.ID == 0 {
					v.ID = nextID
					nextID++
				}
				th[types.Canonicalize(term)] = v
			}
			return th, nil
		}
	}

	// Shape 1: flat string map.
	var flat map[string]string
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("thesaurus: unrecognised remote JSON shape: %w", err)
	}
	th := types.Thesaurus{}
	var nextID uint64 = 1
	for term, norm := range flat {
		th[types.Canonicalize(term)] = types.NormalizedTermValue{ID: nextID, Value: norm}
		nextID++
	}
	return th, nil
}
