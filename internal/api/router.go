package api

import (
	"log/slog"
	"net/http"

	"github.com/gitexplorer/gitexplorer/internal/cache"
	"github.com/gitexplorer/gitexplorer/internal/service"
)

type ServerOptions struct {
	// Store enables the cache admin surface. Read caching itself is wired
	// through the Explorer; a nil Store just disables /api/cache.
	Store              *cache.Store
	CORSAllowedOrigins []string
	StaticDir          string
	Logger             *slog.Logger
}

type Server struct {
	explorer *service.Explorer
	store    *cache.Store
	logger   *slog.Logger
	mux      *http.ServeMux
	handler  http.Handler
}

func NewServer(explorer *service.Explorer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		explorer: explorer,
		store:    opts.Store,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes(opts.StaticDir)

	handler := http.Handler(s.mux)
	handler = corsMiddleware(opts.CORSAllowedOrigins, handler)
	handler = requestTracingMiddleware(handler)
	handler = requestMetricsMiddleware(getDefaultHTTPMetrics(), handler)
	handler = requestBodyLimitMiddleware(handler)
	handler = requestLoggingMiddleware(logger, handler)
	s.handler = handler
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes(staticDir string) {
	// Repository reads
	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("GET /api/repos", s.handleListRepos)
	s.mux.HandleFunc("GET /api/repos/{repo}/branches", s.handleGetBranches)
	s.mux.HandleFunc("GET /api/repos/{repo}/commits", s.handleGetCommits)
	s.mux.HandleFunc("GET /api/repos/{repo}/commits-all-branches", s.handleGetAllBranchesCommits)
	s.mux.HandleFunc("GET /api/repos/{repo}/tags", s.handleGetTags)
	s.mux.HandleFunc("GET /api/repos/{repo}/commit/files", s.handleGetCommitFiles)
	s.mux.HandleFunc("GET /api/repos/{repo}/diff", s.handleGetDiff)
	s.mux.HandleFunc("GET /api/repos/{repo}/status", s.handleGetStatus)

	// Cache administration
	s.mux.HandleFunc("GET /api/cache/stats", s.requireStore(s.handleCacheStats))
	s.mux.HandleFunc("POST /api/cache/invalidate", s.requireStore(s.handleCacheInvalidate))
	s.mux.HandleFunc("POST /api/cache/clear", s.requireStore(s.handleCacheClear))
	s.mux.HandleFunc("POST /api/cache/reset", s.requireStore(s.handleCacheReset))

	// Operational
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", metricsHandler(nil))

	// Frontend assets for everything unmatched.
	s.mux.Handle("/", staticHandler(staticDir))
}

func (s *Server) requireStore(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			jsonError(w, "cache is disabled", http.StatusServiceUnavailable)
			return
		}
		fn(w, r)
	}
}
