package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/docslice/internal/chunker"
)

// Status is a task or document state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// Source is one uploaded file.
type Source struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// ErrorInfo is the classified error attached to a task or document.
type ErrorInfo struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// DocumentResult is the per-document outcome within a task.
type DocumentResult struct {
	Name             string     `json:"name"`
	Filename         string     `json:"filename"`
	DocumentID       string     `json:"document_id,omitempty"`
	Status           Status     `json:"status"`
	ResultPath       string     `json:"result_path,omitempty"`
	Chunks           int        `json:"chunks"`
	Assets           int        `json:"assets"`
	UnanchoredAssets int        `json:"unanchored_assets"`
	EstimatedTokens  int        `json:"estimated_tokens"`
	Error            *ErrorInfo `json:"error,omitempty"`
}

// Task is one processing request over one or more sources.
type Task struct {
	mu sync.Mutex

	ID        string
	OutputDir string
	Config    chunker.Config

	status    Status
	sources   []Source
	documents []DocumentResult
	err       *ErrorInfo
	createdAt time.Time
	updatedAt time.Time
}

// NewTask creates a pending task. The output namespace is the task id.
func NewTask(id string, sources []Source, cfg chunker.Config) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        id,
		OutputDir: id,
		Config:    cfg,
		status:    StatusPending,
		sources:   sources,
		createdAt: now,
		updatedAt: now,
	}
}

// Status returns the current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Sources returns the uploaded files.
func (t *Task) Sources() []Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sources
}

// transition moves the task along pending -> processing -> terminal.
// It reports false, changing nothing, for any other move.
func (t *Task) transition(to Status, info *ErrorInfo) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.status.Terminal():
		return false
	case t.status == StatusPending && to == StatusProcessing:
	case t.status == StatusPending && to == StatusFailed:
	case t.status == StatusProcessing && to.Terminal():
	default:
		return false
	}
	t.status = to
	if info != nil {
		t.err = info
	}
	t.updatedAt = time.Now().UTC()
	if to.Terminal() {
		// Uploaded bytes are no longer needed once the task is settled.
		t.sources = nil
	}
	return true
}

// Fail moves a non-terminal task to failed.
func (t *Task) Fail(code Code, msg string) bool {
	return t.transition(StatusFailed, &ErrorInfo{Code: code, Message: msg})
}

func (t *Task) setDocuments(docs []DocumentResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.documents = docs
	t.updatedAt = time.Now().UTC()
}

// Snapshot is a read-only, JSON-safe copy of task state.
type Snapshot struct {
	TaskID      string           `json:"task_id"`
	Status      Status           `json:"status"`
	OutputDir   string           `json:"output_dir"`
	ResultPaths []string         `json:"result_paths"`
	Documents   []DocumentResult `json:"documents"`
	Error       *ErrorInfo       `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the task state.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		TaskID:      t.ID,
		Status:      t.status,
		OutputDir:   t.OutputDir,
		ResultPaths: []string{},
		Documents:   make([]DocumentResult, len(t.documents)),
		CreatedAt:   t.createdAt,
		UpdatedAt:   t.updatedAt,
	}
	copy(snap.Documents, t.documents)
	for _, d := range t.documents {
		if d.ResultPath != "" {
			snap.ResultPaths = append(snap.ResultPaths, d.ResultPath)
		}
	}
	if t.err != nil {
		e := *t.err
		snap.Error = &e
	}
	return snap
}

// TaskStore is a thread-safe in-memory task registry with TTL eviction.
type TaskStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	ttl   time.Duration
}

func NewTaskStore(ttl time.Duration) *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*Task),
		ttl:   ttl,
	}
}

func (s *TaskStore) Put(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

func (s *TaskStore) Get(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

// Cleanup removes settled tasks older than the TTL. In-flight tasks stay.
func (s *TaskStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, t := range s.tasks {
		snap := t.Snapshot()
		if snap.Status.Terminal() && now.Sub(snap.UpdatedAt) > s.ttl {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// DocumentID derives the stable document id from its converted text.
func DocumentID(text string) string {
	return ContentHashHex([]byte(text))[:16]
}
