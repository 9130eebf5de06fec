// Package storage persists task artifacts behind a small key/value interface.
// Keys are slash-separated and relative to the store root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey is returned for keys that are empty, absolute or escape the root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Store is implemented by every backend.
type Store interface {
	// Put writes r under key, replacing any previous object. Readers never
	// observe a partially written object.
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendMinio Backend = "minio"
	BackendS3    Backend = "s3"
)

// Options selects and configures a backend.
type Options struct {
	Backend Backend
	Root    string // local data directory
	Minio   MinioOptions
	S3      S3Options
}

// New builds the configured backend.
func New(ctx context.Context, opts Options, log *slog.Logger) (Store, error) {
	switch opts.Backend {
	case BackendLocal, "":
		return NewLocal(opts.Root)
	case BackendMinio:
		return NewMinio(ctx, opts.Minio, log)
	case BackendS3:
		return NewS3(ctx, opts.S3, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
