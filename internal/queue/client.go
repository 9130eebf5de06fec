package queue

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/dgallion1/docslice/internal/storage"
	"github.com/hibiken/asynq"
)

// Client submits tasks to asynq and answers status from the Redis mirror.
type Client struct {
	asynq   *asynq.Client
	status  *StatusStore
	store   storage.Store
	log     *slog.Logger
	timeout time.Duration
}

// NewClient wires an asynq client to the shared status store and storage.
func NewClient(ac *asynq.Client, status *StatusStore, store storage.Store, log *slog.Logger, taskTimeout time.Duration) *Client {
	return &Client{asynq: ac, status: status, store: store, log: log, timeout: taskTimeout}
}

// Submit stages the uploads in storage and enqueues the task.
func (c *Client) Submit(ctx context.Context, t *pipeline.Task) error {
	p := Payload{TaskID: t.ID, Config: t.Config, CreatedAt: time.Now().UTC()}
	for i, src := range t.Sources() {
		key := storage.UploadKey(t.ID, i, src.Filename)
		if err := c.store.Put(ctx, key, bytes.NewReader(src.Data)); err != nil {
			return c.reject(ctx, t, pipeline.CodeIO, fmt.Errorf("stage upload %s: %w", src.Filename, err))
		}
		p.Uploads = append(p.Uploads, Upload{Filename: src.Filename, Key: key})
	}

	task, err := NewProcessTask(p, c.timeout)
	if err != nil {
		return c.reject(ctx, t, pipeline.CodeQueue, err)
	}
	if err := c.status.Save(ctx, t.Snapshot()); err != nil {
		return c.reject(ctx, t, pipeline.CodeQueue, err)
	}
	info, err := c.asynq.EnqueueContext(ctx, task)
	if err != nil {
		return c.reject(ctx, t, pipeline.CodeQueue, fmt.Errorf("%w: %w", pipeline.ErrQueueFull, err))
	}
	c.log.Info("task enqueued", "task_id", t.ID, "queue", info.Queue, "uploads", len(p.Uploads))
	return nil
}

func (c *Client) reject(ctx context.Context, t *pipeline.Task, code pipeline.Code, err error) error {
	t.Fail(code, err.Error())
	cctx := context.WithoutCancel(ctx)
	if serr := c.status.Save(cctx, t.Snapshot()); serr != nil {
		c.log.Warn("status mirror failed", "task_id", t.ID, "error", serr)
	}
	if derr := c.store.DeletePrefix(cctx, storage.UploadPrefix(t.ID)); derr != nil {
		c.log.Warn("upload cleanup failed", "task_id", t.ID, "error", derr)
	}
	return err
}

// Lookup returns the mirrored snapshot.
func (c *Client) Lookup(ctx context.Context, id string) (pipeline.Snapshot, bool, error) {
	return c.status.Get(ctx, id)
}
