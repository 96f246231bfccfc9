package api

import (
	"net/http"

	"github.com/gitexplorer/gitexplorer/internal/models"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, models.ConfigResponse{ReposRoot: s.explorer.ReposRoot()})
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.explorer.Repos(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, repos)
}

func (s *Server) handleGetBranches(w http.ResponseWriter, r *http.Request) {
	info, err := s.explorer.Branches(r.Context(), r.PathValue("repo"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, info)
}

func (s *Server) handleGetCommits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimitParam(w, q.Get("limit"))
	if !ok {
		return
	}
	mode := q.Get("mode")
	if mode != "" && !models.IsWalkMode(mode) {
		jsonError(w, "invalid mode", http.StatusBadRequest)
		return
	}
	commits, err := s.explorer.Commits(r.Context(), r.PathValue("repo"), q.Get("branch"), mode, limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, commits)
}

func (s *Server) handleGetAllBranchesCommits(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimitParam(w, r.URL.Query().Get("limit"))
	if !ok {
		return
	}
	commits, err := s.explorer.AllBranchesCommits(r.Context(), r.PathValue("repo"), limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, commits)
}

func (s *Server) handleGetTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.explorer.Tags(r.Context(), r.PathValue("repo"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, tags)
}

func (s *Server) handleGetCommitFiles(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		ref = "HEAD"
	}
	files, err := s.explorer.CommitFiles(r.Context(), r.PathValue("repo"), ref)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, files)
}

func (s *Server) handleGetDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	ref := q.Get("ref")
	if ref == "" {
		jsonError(w, "ref is required", http.StatusBadRequest)
		return
	}
	diff, err := s.explorer.Diff(r.Context(), r.PathValue("repo"), ref, path)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, diff)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.explorer.Status(r.Context(), r.PathValue("repo"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, status)
}
