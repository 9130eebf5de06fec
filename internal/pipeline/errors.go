package pipeline

import (
	"context"
	"errors"
	"io/fs"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/convert"
	"github.com/dgallion1/docslice/internal/merge"
	"github.com/dgallion1/docslice/internal/storage"
)

// Code classifies an error for logs and task status.
type Code string

const (
	CodeConfig     Code = "config"
	CodeConversion Code = "conversion"
	CodeMerge      Code = "merge"
	CodeIO         Code = "io"
	CodeTimeout    Code = "timeout"
	CodeQueue      Code = "queue"
	CodeUnknown    Code = "unknown"
)

// ErrWrite marks an artifact write that failed after its retry.
var ErrWrite = errors.New("artifact write failed")

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("task queue is full")

// Classify maps an error to its Code.
func Classify(err error) Code {
	var ce *chunker.ConfigError
	var pe *fs.PathError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	case errors.As(err, &ce):
		return CodeConfig
	case errors.Is(err, convert.ErrConversionUnavailable):
		return CodeConversion
	case errors.Is(err, merge.ErrInconsistent):
		return CodeMerge
	case errors.Is(err, ErrQueueFull):
		return CodeQueue
	case errors.Is(err, ErrWrite), errors.Is(err, storage.ErrInvalidKey), errors.As(err, &pe):
		return CodeIO
	}
	return CodeUnknown
}

func errorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Code: Classify(err), Message: err.Error()}
}
