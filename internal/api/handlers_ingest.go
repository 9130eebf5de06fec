package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/convert"
	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := s.requestConfig(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fhs := r.MultipartForm.File["file"]
	if len(fhs) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	src, status, err := s.readUpload(fhs[0])
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	s.submit(w, r, []pipeline.Source{src}, cfg, nil)
}

func (s *Server) handleBatchProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := s.requestConfig(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var sources []pipeline.Source
	var rejected []map[string]any
	for _, fh := range files {
		src, _, err := s.readUpload(fh)
		if err != nil {
			rejected = append(rejected, map[string]any{
				"filename": sanitizeFilename(fh.Filename),
				"error":    err.Error(),
			})
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": "no acceptable files", "rejected": rejected})
		return
	}

	s.submit(w, r, sources, cfg, rejected)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, sources []pipeline.Source, cfg chunker.Config, rejected []map[string]any) {
	task := pipeline.NewTask(uuid.NewString(), sources, cfg)
	if err := s.deps.Tasks.Submit(r.Context(), task); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		s.log.Warn("task rejected", "task_id", task.ID, "error", err)
		jsonError(w, err.Error(), code)
		return
	}

	resp := map[string]any{
		"task_id":    task.ID,
		"status":     pipeline.StatusPending,
		"output_dir": task.OutputDir,
		"documents":  len(sources),
		"poll_url":   fmt.Sprintf("/api/v1/tasks/%s", task.ID),
	}
	if len(rejected) > 0 {
		resp["rejected"] = rejected
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// requestConfig resolves the optional "policy" form field against the
// server defaults.
func (s *Server) requestConfig(r *http.Request) (chunker.Config, error) {
	p, err := chunker.ParsePolicyJSON([]byte(r.FormValue("policy")))
	if err != nil {
		return chunker.Config{}, err
	}
	return p.Resolve(s.opts.ChunkDefaults)
}

// readUpload returns an HTTP status alongside any error.
func (s *Server) readUpload(fh *multipart.FileHeader) (pipeline.Source, int, error) {
	filename := sanitizeFilename(fh.Filename)
	if !convert.IsSupportedExtension(filename) {
		return pipeline.Source{}, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	f, err := fh.Open()
	if err != nil {
		return pipeline.Source{}, http.StatusInternalServerError, fmt.Errorf("failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes+1))
	if err != nil {
		return pipeline.Source{}, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		return pipeline.Source{}, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.opts.MaxUploadBytes)
	}
	return pipeline.Source{Filename: filename, Data: data}, http.StatusOK, nil
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	snap, ok, err := s.deps.Tasks.Lookup(r.Context(), taskID)
	if err != nil {
		s.log.Error("task lookup failed", "task_id", taskID, "error", err)
		jsonError(w, "task lookup failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
