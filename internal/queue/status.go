package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/redis/go-redis/v9"
)

const statusKeyPrefix = "docslice:task:"

// StatusStore mirrors task snapshots into Redis so any API replica can
// answer status queries.
type StatusStore struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewStatusStore keeps snapshots for ttl (default 24h).
func NewStatusStore(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *StatusStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusStore{rdb: rdb, ttl: ttl, log: log}
}

// Save writes a snapshot, refreshing its TTL.
func (s *StatusStore) Save(ctx context.Context, snap pipeline.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, statusKeyPrefix+snap.TaskID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save status %s: %w", snap.TaskID, err)
	}
	return nil
}

// Get loads a snapshot. The bool is false when the task is unknown or expired.
func (s *StatusStore) Get(ctx context.Context, taskID string) (pipeline.Snapshot, bool, error) {
	data, err := s.rdb.Get(ctx, statusKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return pipeline.Snapshot{}, false, nil
	}
	if err != nil {
		return pipeline.Snapshot{}, false, fmt.Errorf("get status %s: %w", taskID, err)
	}
	var snap pipeline.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return pipeline.Snapshot{}, false, fmt.Errorf("decode status %s: %w", taskID, err)
	}
	return snap, true, nil
}

// Observe implements pipeline.Observer.
func (s *StatusStore) Observe(ctx context.Context, snap pipeline.Snapshot) {
	if err := s.Save(ctx, snap); err != nil {
		s.log.Warn("status mirror failed", "task_id", snap.TaskID, "status", snap.Status, "error", err)
	}
}
