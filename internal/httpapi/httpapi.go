// Package httpapi exposes the four external HTTP endpoints over
// net/http.ServeMux's Go 1.22+ method-pattern routing, following
// internal/health/health.go's handler style: small structs with a Register
// method, JSON in and out, no framework.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/terraphim/kgsearchd/internal/config"
	"github.com/terraphim/kgsearchd/internal/search"
	"github.com/terraphim/kgsearchd/internal/types"
)

// Server adapts the search pipeline and config state to HTTP. It is safe for
// concurrent use.
type Server struct {
	pipeline *search.Pipeline
	state    *config.State
}

// New creates a Server backed by the given pipeline and config state.
func New(pipeline *search.Pipeline, state *config.State) *Server {
	return &Server{pipeline: pipeline, state: state}
}

// Register adds every kgsearchd route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("POST /config", s.handlePostConfig)
	mux.HandleFunc("POST /documents", s.handlePostDocument)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// searchRequest is the wire shape of POST /search, named per spec.md §6
// rather than the internal [types.SearchQuery] field names.
type searchRequest struct {
	SearchTerm  string   `json:"search_term"`
	SearchTerms []string `json:"search_terms,omitempty"`
	Operator    string   `json:"operator,omitempty"`
	Role        string   `json:"role,omitempty"`
	Skip        int      `json:"skip,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

type searchResponse struct {
	Status  string           `json:"status"`
	Results []types.Document `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	term := req.SearchTerm
	if term == "" && len(req.SearchTerms) > 0 {
		term = req.SearchTerms[0]
	}

	q := types.SearchQuery{
		Search:   term,
		Role:     req.Role,
		Operator: req.Operator,
		Limit:    req.Limit,
		Offset:   req.Skip,
	}

	result, err := s.pipeline.Search(r.Context(), q)
	if err != nil {
		writeSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Status: "ok", Results: result.Documents})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Current())
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.LoadFromReader(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.state.Replace(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePostDocument(w http.ResponseWriter, r *http.Request) {
	var doc types.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "malformed document body")
		return
	}
	role := r.URL.Query().Get("role")
	if err := s.pipeline.IndexDocument(r.Context(), role, doc); err != nil {
		writeSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth returns the literal "OK" response spec.md §6 names, distinct
// from internal/health's richer liveness/readiness JSON — this is the
// minimal contract the search API itself promises callers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeSearchError(w http.ResponseWriter, err error) {
	var serr *search.Error
	if errors.As(err, &serr) {
		status := http.StatusInternalServerError
		switch serr.Category() {
		case search.CategoryClient:
			status = http.StatusBadRequest
		case search.CategoryServer:
			status = http.StatusBadGateway
		}
		slog.Warn("search request failed", "kind", serr.Kind, "err", serr)
		writeError(w, status, serr.Error())
		return
	}
	slog.Error("unexpected search error", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: failed to encode response", "err", err)
	}
}
