package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/alexchenyu/OpenDeepWiki/internal/store"
)

type submitRunRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// handleSubmitRun queues a documentation run for a local repository path.
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		jsonError(w, "path is not a readable directory", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = filepath.Base(req.Path)
	}

	run, err := s.pipeline.Submit(req.Name, req.Path)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("run submitted", "run_id", run.ID, "repo", req.Name, "path", req.Path)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(run.Snapshot())
}

// handleRunStatus returns the current state of a run.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.pipeline.GetRun(runID)
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run.Snapshot())
}

// handleRepository returns a repository record.
func (s *Server) handleRepository(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repoID")
	repo, err := s.store.GetRepository(r.Context(), repoID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "repository not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "load repository: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(repo)
}

// handleEntries lists a repository's catalogue entries.
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	repoID := chi.URLParam(r, "repoID")
	entries, err := s.store.FindEntriesByRepository(r.Context(), repoID)
	if err != nil {
		jsonError(w, "load entries: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.CatalogEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"entries": entries})
}

// handleQueueStats reports pipeline queue depth.
func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"queue_depth": s.pipeline.QueueDepth(),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
