package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// staticHandler serves the frontend assets from a directory on disk. The
// desktop shell ships the built SPA next to the binary; an empty dir (or a
// dir that does not exist) turns unmatched routes into plain 404s so the
// API can run headless.
func staticHandler(dir string) http.Handler {
	if dir == "" {
		return http.NotFoundHandler()
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return http.NotFoundHandler()
	}
	fileServer := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(path))); err == nil {
			fileServer.ServeHTTP(w, r)
			return
		}

		// SPA fallback: the client router owns all non-file routes.
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
