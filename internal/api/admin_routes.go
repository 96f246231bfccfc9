package api

import (
	"net/http"
	"strings"
)

type invalidateResponse struct {
	Repo   string   `json:"repo"`
	Clean  bool     `json:"clean"`
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// handleCacheInvalidate drops the mutable records for one repository.
// The response reports per-step failures instead of a bare 500 because a
// partial invalidation still leaves the cache safe: the fingerprint goes
// first, so whatever remains is untrusted.
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	repo := strings.TrimSpace(r.URL.Query().Get("repo"))
	if repo == "" {
		jsonError(w, "repo is required", http.StatusBadRequest)
		return
	}
	result := s.store.InvalidateRepo(r.Context(), repo)

	resp := invalidateResponse{Repo: repo, Clean: result.Clean()}
	for _, err := range []error{result.Fingerprint, result.Branches, result.Commits} {
		if err != nil {
			resp.Errors = append(resp.Errors, err.Error())
		}
	}
	s.logger.Info("cache invalidated", "repo", repo, "clean", resp.Clean)
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	includeImmutable := r.URL.Query().Get("immutable") == "true"
	if err := s.store.ClearAll(r.Context(), includeImmutable); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info("cache cleared", "immutable", includeImmutable)
	jsonResponse(w, http.StatusOK, map[string]bool{"cleared": true, "immutable": includeImmutable})
}

func (s *Server) handleCacheReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context()); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info("cache store reset")
	jsonResponse(w, http.StatusOK, map[string]bool{"reset": true})
}
