package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// OrchestratorOptions sizes the in-process worker pool.
type OrchestratorOptions struct {
	WorkerCount  int
	MaxQueueSize int
	TaskTTL      time.Duration
}

// Orchestrator runs tasks on a fixed pool of goroutines fed by a bounded queue.
type Orchestrator struct {
	tasks   *TaskStore
	queue   chan *Task
	manager *Manager
	log     *slog.Logger
	opts    OrchestratorOptions

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(m *Manager, log *slog.Logger, opts OrchestratorOptions) *Orchestrator {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 2
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 100
	}
	if opts.TaskTTL <= 0 {
		opts.TaskTTL = time.Hour
	}
	return &Orchestrator{
		tasks:   NewTaskStore(opts.TaskTTL),
		queue:   make(chan *Task, opts.MaxQueueSize),
		manager: m,
		log:     log,
		opts:    opts,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.opts.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case t, ok := <-o.queue:
					if !ok {
						return
					}
					o.manager.Process(workerCtx, t)
				}
			}
		}()
	}

	// Start task store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := o.tasks.Cleanup(); n > 0 {
					o.log.Debug("evicted settled tasks", "count", n)
				}
			}
		}
	}()
}

// Stop cancels in-flight work and fails tasks still waiting in the queue.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for t := range o.queue {
		if t.Fail(CodeTimeout, "server shut down before the task ran") {
			o.manager.notify(context.Background(), t.Snapshot())
		}
	}
}

// Submit registers a task and queues it for processing.
func (o *Orchestrator) Submit(ctx context.Context, t *Task) error {
	o.tasks.Put(t)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		t.Fail(CodeQueue, "server is shutting down")
		return fmt.Errorf("%w: shutting down", ErrQueueFull)
	}
	select {
	case o.queue <- t:
		o.manager.notify(ctx, t.Snapshot())
		return nil
	default:
		t.Fail(CodeQueue, "task queue is full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.opts.MaxQueueSize)
	}
}

// Lookup returns the current snapshot of a task.
func (o *Orchestrator) Lookup(_ context.Context, id string) (Snapshot, bool, error) {
	t := o.tasks.Get(id)
	if t == nil {
		return Snapshot{}, false, nil
	}
	return t.Snapshot(), true, nil
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
