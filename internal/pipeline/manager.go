package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/convert"
	"github.com/dgallion1/docslice/internal/index"
	"github.com/dgallion1/docslice/internal/stats"
	"github.com/dgallion1/docslice/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Observer is told about every task status change.
type Observer interface {
	Observe(ctx context.Context, snap Snapshot)
}

// ConvertFunc turns an uploaded file into text and assets.
type ConvertFunc func(filename string, data []byte) (*convert.Result, error)

// ManagerOptions tunes a Manager. Zero values pick defaults.
type ManagerOptions struct {
	MaxConcurrentDocs int           // documents of one task in flight (default 4)
	TaskTimeout       time.Duration // 0 disables the per-task deadline
	RetryBase         time.Duration // first write retry delay (default 500ms)
	Stats             *stats.Recorder
	Observer          Observer
	Convert           ConvertFunc
}

// Manager owns task directories: it runs every document of a task through
// the stages, persists results, records the index and settles the status.
type Manager struct {
	store storage.Store
	index *index.Index
	log   *slog.Logger
	opts  ManagerOptions
}

func NewManager(store storage.Store, idx *index.Index, log *slog.Logger, opts ManagerOptions) *Manager {
	if opts.MaxConcurrentDocs <= 0 {
		opts.MaxConcurrentDocs = 4
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 500 * time.Millisecond
	}
	if opts.Convert == nil {
		opts.Convert = convert.Convert
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewRecorder(time.Hour)
	}
	return &Manager{store: store, index: idx, log: log, opts: opts}
}

// Stats exposes the latency recorder.
func (m *Manager) Stats() *stats.Recorder { return m.opts.Stats }

// Process runs a pending task to a terminal status and returns its final
// snapshot. Tasks that are not pending are left untouched.
func (m *Manager) Process(ctx context.Context, t *Task) Snapshot {
	start := time.Now()
	log := m.log.With("task_id", t.ID)

	if !t.transition(StatusProcessing, nil) {
		log.Warn("task is not pending, skipping", "status", t.Status())
		return t.Snapshot()
	}
	m.observe(ctx, t)
	log.Info("task started", "documents", len(t.Sources()))

	runCtx := ctx
	if m.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.opts.TaskTimeout)
		defer cancel()
	}

	sources := t.Sources()
	if len(sources) == 0 {
		t.Fail(CodeConfig, "task has no documents")
		return m.settle(ctx, log, t, start)
	}

	names := documentNames(sources)
	results := make([]DocumentResult, len(sources))
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(m.opts.MaxConcurrentDocs)
	for i, src := range sources {
		g.Go(func() error {
			results[i] = m.processDocument(gctx, log, t, names[i], src)
			return nil
		})
	}
	_ = g.Wait()
	t.setDocuments(results)

	if err := runCtx.Err(); err != nil {
		m.discard(ctx, log, t, results, CodeTimeout, fmt.Sprintf("task did not finish: %v", err))
		return m.settle(ctx, log, t, start)
	}

	var entries []index.Entry
	now := time.Now().UTC()
	for _, r := range results {
		if r.Status == StatusCompleted {
			entries = append(entries, index.Entry{TaskID: t.ID, DocumentID: r.DocumentID, ResultPath: r.ResultPath, CreatedAt: now})
		}
	}
	if err := m.index.Append(runCtx, entries...); err != nil {
		log.Error("index append failed", "error", err)
		m.discard(ctx, log, t, results, Classify(fmt.Errorf("%w: %w", ErrWrite, err)), err.Error())
		return m.settle(ctx, log, t, start)
	}

	switch succeeded := len(entries); {
	case succeeded == len(results):
		t.transition(StatusCompleted, nil)
	case succeeded > 0:
		t.transition(StatusPartial, nil)
	default:
		info := results[0].Error
		if len(results) > 1 {
			info = &ErrorInfo{Code: info.Code, Message: fmt.Sprintf("all %d documents failed; first: %s", len(results), info.Message)}
		}
		t.transition(StatusFailed, info)
	}
	return m.settle(ctx, log, t, start)
}

// discard deletes everything the task wrote and fails it.
func (m *Manager) discard(ctx context.Context, log *slog.Logger, t *Task, results []DocumentResult, code Code, msg string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := m.store.DeletePrefix(cctx, storage.TaskPrefix(t.ID)); err != nil {
		log.Error("cleanup failed", "prefix", storage.TaskPrefix(t.ID), "error", err)
	}
	for i := range results {
		if results[i].Status == StatusCompleted {
			results[i].Status = StatusFailed
			results[i].ResultPath = ""
			results[i].Error = &ErrorInfo{Code: code, Message: msg}
		}
	}
	t.setDocuments(results)
	t.Fail(code, msg)
}

func (m *Manager) settle(ctx context.Context, log *slog.Logger, t *Task, start time.Time) Snapshot {
	snap := t.Snapshot()
	m.opts.Stats.Record("task", time.Since(start))
	m.opts.Stats.Outcome(string(snap.Status))
	m.notify(ctx, snap)

	attrs := []any{"status", snap.Status, "documents", len(snap.Documents), "duration_ms", time.Since(start).Milliseconds()}
	if snap.Error != nil {
		log.Error("task failed", append(attrs, "code", snap.Error.Code, "error", snap.Error.Message)...)
	} else {
		log.Info("task finished", attrs...)
	}
	return snap
}

func (m *Manager) processDocument(ctx context.Context, log *slog.Logger, t *Task, name string, src Source) DocumentResult {
	start := time.Now()
	log = log.With("document", name, "filename", src.Filename)
	res := DocumentResult{Name: name, Filename: src.Filename, Status: StatusProcessing}

	fail := func(err error) DocumentResult {
		res.Status = StatusFailed
		res.ResultPath = ""
		res.Error = errorInfo(err)
		log.Error("document failed", "code", res.Error.Code, "error", err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	conv, err := m.opts.Convert(src.Filename, src.Data)
	if err != nil {
		return fail(err)
	}
	m.opts.Stats.Record("convert", time.Since(start))

	prep, err := Prepare(src.Filename, conv, t.Config)
	if err != nil {
		return fail(err)
	}
	for _, miss := range prep.Misses {
		log.Warn("asset not anchored", "asset_id", miss.AssetID, "path", miss.Path)
	}
	res.DocumentID = prep.Merged.DocumentID
	res.Chunks = prep.ChunkCount()
	res.Assets = len(prep.Document.Assets)
	res.UnanchoredAssets = len(prep.Misses)
	res.EstimatedTokens = chunker.EstimateTokens(prep.Document.Text)

	for _, a := range prep.Document.Assets {
		if len(a.Data) == 0 {
			continue
		}
		if err := m.write(ctx, log, storage.AssetKey(t.ID, name, a.RelativePath), a.Data); err != nil {
			return fail(err)
		}
	}

	key := storage.ResultKey(t.ID, name)
	if err := m.write(ctx, log, key, prep.Body); err != nil {
		return fail(err)
	}
	res.Status = StatusCompleted
	res.ResultPath = key

	m.opts.Stats.Record("document", time.Since(start))
	log.Info("document completed",
		"document_id", res.DocumentID,
		"chunks", res.Chunks,
		"assets", res.Assets,
		"unanchored", res.UnanchoredAssets,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// write stores data under key, retrying once with backoff.
func (m *Manager) write(ctx context.Context, log *slog.Logger, key string, data []byte) error {
	var err error
	for attempt := range MaxWriteAttempts {
		if attempt > 0 {
			delay := Backoff(m.opts.RetryBase, attempt-1)
			log.Warn("retrying write", "key", key, "attempt", attempt+1, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = m.store.Put(ctx, key, bytes.NewReader(data)); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrWrite, key, err)
}

func (m *Manager) observe(ctx context.Context, t *Task) {
	m.notify(ctx, t.Snapshot())
}

func (m *Manager) notify(ctx context.Context, snap Snapshot) {
	if m.opts.Observer != nil {
		m.opts.Observer.Observe(context.WithoutCancel(ctx), snap)
	}
}

// documentNames gives every source a directory name unique within the task.
func documentNames(sources []Source) []string {
	names := make([]string, len(sources))
	used := make(map[string]bool, len(sources))
	for i, s := range sources {
		base := storage.DocumentName(s.Filename)
		name := base
		for n := 2; used[name]; n++ {
			name = base + "_" + strconv.Itoa(n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}
