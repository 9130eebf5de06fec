package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/dgallion1/docslice/internal/storage"
	"github.com/hibiken/asynq"
)

// WorkerConfig sizes the asynq server.
type WorkerConfig struct {
	RedisAddr   string
	RedisDB     int
	Concurrency int
}

// Worker consumes docslice tasks from asynq.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	manager *pipeline.Manager
	store   storage.Store
	status  *StatusStore
	log     *slog.Logger
}

func NewWorker(cfg WorkerConfig, m *pipeline.Manager, store storage.Store, status *StatusStore, log *slog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      map[string]int{"default": 1},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)
	w := &Worker{
		server:  server,
		mux:     asynq.NewServeMux(),
		manager: m,
		store:   store,
		status:  status,
		log:     log,
	}
	w.mux.HandleFunc(TaskTypeProcess, w.handleProcess)
	return w
}

// Start begins consuming in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Stop waits for active handlers and shuts the server down.
func (w *Worker) Stop() {
	w.server.Shutdown()
}

// handleProcess never asks asynq to retry: the task outcome is reported
// through its status, and re-running a settled task is not allowed.
func (w *Worker) handleProcess(ctx context.Context, at *asynq.Task) error {
	p, err := DecodePayload(at.Payload())
	if err != nil {
		w.log.Error("dropping malformed task", "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	log := w.log.With("task_id", p.TaskID)
	defer func() {
		if err := w.store.DeletePrefix(context.WithoutCancel(ctx), storage.UploadPrefix(p.TaskID)); err != nil {
			log.Warn("upload cleanup failed", "error", err)
		}
	}()

	sources := make([]pipeline.Source, 0, len(p.Uploads))
	for _, u := range p.Uploads {
		data, err := w.load(ctx, u.Key)
		if err != nil {
			t := pipeline.NewTask(p.TaskID, nil, p.Config)
			t.Fail(pipeline.CodeIO, fmt.Sprintf("load upload %s: %v", u.Filename, err))
			w.save(ctx, t.Snapshot())
			log.Error("upload missing", "key", u.Key, "error", err)
			return nil
		}
		sources = append(sources, pipeline.Source{Filename: u.Filename, Data: data})
	}

	task := pipeline.NewTask(p.TaskID, sources, p.Config)
	snap := w.manager.Process(ctx, task)
	log.Info("task handled", "status", snap.Status)
	return nil
}

func (w *Worker) load(ctx context.Context, key string) ([]byte, error) {
	rc, err := w.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (w *Worker) save(ctx context.Context, snap pipeline.Snapshot) {
	if w.status == nil {
		return
	}
	w.status.Observe(ctx, snap)
}
