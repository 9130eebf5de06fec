// Package queue runs tasks through Redis with asynq so the API and the
// workers can live in separate processes.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/hibiken/asynq"
)

// TaskTypeProcess is the asynq task type for a docslice task.
const TaskTypeProcess = "docslice:process"

// Upload points at a staged source file in storage.
type Upload struct {
	Filename string `json:"filename"`
	Key      string `json:"key"`
}

// Payload is the asynq task body. File bytes are staged in storage, not Redis.
type Payload struct {
	TaskID    string         `json:"task_id"`
	Config    chunker.Config `json:"config"`
	Uploads   []Upload       `json:"uploads"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewProcessTask encodes p as an asynq task.
func NewProcessTask(p Payload, timeout time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	opts := []asynq.Option{
		asynq.TaskID(p.TaskID),
		asynq.MaxRetry(0),
		asynq.Queue("default"),
	}
	if timeout > 0 {
		// Leave the manager's own deadline room to clean up first.
		opts = append(opts, asynq.Timeout(timeout+time.Minute))
	}
	return asynq.NewTask(TaskTypeProcess, data, opts...), nil
}

// DecodePayload parses an asynq task body.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.TaskID == "" || len(p.Uploads) == 0 {
		return Payload{}, fmt.Errorf("invalid payload: missing task id or uploads")
	}
	return p, nil
}
