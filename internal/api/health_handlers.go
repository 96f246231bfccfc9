package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Cache     healthCache `json:"cache"`
	Errors    []string    `json:"errors,omitempty"`
}

type healthCache struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// handleHealthz reports liveness. A failing cache store degrades the
// report but repository reads keep working without it, so the cache
// detail is informational.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Cache:     healthCache{Enabled: s.store != nil},
	}
	if s.store != nil {
		resp.Cache.Path = s.store.Path()
		if err := s.store.Ping(r.Context()); err != nil {
			resp.Errors = append(resp.Errors, "cache: "+err.Error())
		}
	}
	if len(resp.Errors) > 0 {
		resp.Status = "degraded"
		jsonResponse(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}
