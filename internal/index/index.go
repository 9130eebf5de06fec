// Package index maintains the global task index: a single JSON object at the
// store root mapping task ids to the documents each task produced.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/docslice/internal/storage"
)

// Entry records one succeeded document.
type Entry struct {
	TaskID     string    `json:"task_id"`
	DocumentID string    `json:"document_id"`
	ResultPath string    `json:"result_path"`
	CreatedAt  time.Time `json:"created_at"`
}

// Locker serializes writers of the index.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// chanLocker is an in-process lock that honors context cancellation.
type chanLocker chan struct{}

func (l chanLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewProcessLocker returns a Locker good for a single process.
func NewProcessLocker() Locker {
	return make(chanLocker, 1)
}

// Index reads and appends to the index object.
type Index struct {
	store storage.Store
	lock  Locker
}

// New returns an Index over store. A nil locker uses an in-process lock.
func New(store storage.Store, lock Locker) *Index {
	if lock == nil {
		lock = NewProcessLocker()
	}
	return &Index{store: store, lock: lock}
}

// Append adds entries under the lock with a read-modify-write. The write is
// atomic, so readers see either the old or the new index.
func (ix *Index) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	unlock, err := ix.lock.Lock(ctx)
	if err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer unlock()

	all, err := ix.Load(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		all[e.TaskID] = append(all[e.TaskID], e)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	data = append(data, '\n')
	if err := ix.store.Put(ctx, storage.IndexKey, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Load returns the whole index. A missing index is empty.
func (ix *Index) Load(ctx context.Context) (map[string][]Entry, error) {
	rc, err := ix.store.Get(ctx, storage.IndexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string][]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	all := map[string][]Entry{}
	if len(bytes.TrimSpace(data)) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if all == nil {
		// A literal null decodes to a nil map.
		all = map[string][]Entry{}
	}
	return all, nil
}

// Lookup returns the entries recorded for one task.
func (ix *Index) Lookup(ctx context.Context, taskID string) ([]Entry, error) {
	all, err := ix.Load(ctx)
	if err != nil {
		return nil, err
	}
	return all[taskID], nil
}
