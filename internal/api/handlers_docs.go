package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/dgallion1/docslice/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// handleDownload streams an artifact from a task's namespace.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	// Task namespaces are uuids; anything else (the upload staging area,
	// the index) is not downloadable.
	if _, err := uuid.Parse(taskID); err != nil {
		jsonError(w, "invalid task id", http.StatusBadRequest)
		return
	}
	rel := chi.URLParam(r, "*")
	key := path.Clean(path.Join(taskID, rel))
	if rel == "" || !strings.HasPrefix(key, storage.TaskPrefix(taskID)) {
		jsonError(w, "invalid artifact path", http.StatusBadRequest)
		return
	}

	rc, err := s.deps.Store.Get(r.Context(), key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		jsonError(w, "artifact not found", http.StatusNotFound)
		return
	case errors.Is(err, storage.ErrInvalidKey):
		jsonError(w, "invalid artifact path", http.StatusBadRequest)
		return
	case err != nil:
		s.log.Error("artifact read failed", "key", key, "error", err)
		jsonError(w, "artifact read failed", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("artifact stream interrupted", "key", key, "error", err)
	}
}

// handleIndex returns the global index, or one task's entries with ?task_id=.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if taskID := r.URL.Query().Get("task_id"); taskID != "" {
		entries, err := s.deps.Index.Lookup(ctx, taskID)
		if err != nil {
			jsonError(w, "failed to read index: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			jsonError(w, "task not in index", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"task_id": taskID, "entries": entries})
		return
	}

	all, err := s.deps.Index.Load(ctx)
	if err != nil {
		jsonError(w, "failed to read index: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(all)
}
