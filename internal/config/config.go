package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/storage"
	"github.com/joho/godotenv"
)

// Queue modes.
const (
	QueueLocal = "local"
	QueueAsynq = "asynq"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Storage
	StorageBackend string
	DataDir        string
	Minio          storage.MinioOptions
	S3             storage.S3Options

	// Worker pool
	WorkerCount       int
	MaxQueueSize      int
	MaxConcurrentDocs int

	// Upload limits
	MaxUploadBytes int64

	// Task state
	TaskTTL     time.Duration
	TaskTimeout time.Duration

	// Chunking defaults
	ChunkPolicyFile     string
	DefaultChunkSize    int
	DefaultIndexSize    int
	DefaultChunkOverlap float64

	// Queue
	QueueMode string
	RedisAddr string
	RedisDB   int
	StatusTTL time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads a .env file when present, then the environment.
func Load() Config {
	_ = godotenv.Load()
	return fromEnv()
}

// LoadFile is Load with an explicit .env path. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return fromEnv(), nil
}

func fromEnv() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCSLICE_API_KEY"),

		StorageBackend: envOr("STORAGE_BACKEND", string(storage.BackendLocal)),
		DataDir:        envOr("DATA_DIR", "./data"),
		Minio: storage.MinioOptions{
			Endpoint:  envOr("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envOr("MINIO_BUCKET", "docslice"),
			Region:    envOr("MINIO_REGION", "us-east-1"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		S3: storage.S3Options{
			Region:    envOr("AWS_REGION", "us-east-1"),
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Bucket:    os.Getenv("AWS_S3_BUCKET"),
			Endpoint:  os.Getenv("AWS_S3_ENDPOINT"),
		},

		WorkerCount:       envInt("WORKER_COUNT", 4),
		MaxQueueSize:      envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentDocs: envInt("MAX_CONCURRENT_DOCS", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		TaskTTL:     envDuration("TASK_TTL", 1*time.Hour),
		TaskTimeout: envDuration("TASK_TIMEOUT", 10*time.Minute),

		ChunkPolicyFile:     os.Getenv("CHUNK_POLICY_FILE"),
		DefaultChunkSize:    envInt("DEFAULT_CHUNK_SIZE", 500),
		DefaultIndexSize:    envInt("DEFAULT_INDEX_SIZE", 0),
		DefaultChunkOverlap: envFloat("DEFAULT_CHUNK_OVERLAP", 0.1),

		QueueMode: envOr("QUEUE_MODE", QueueLocal),
		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		RedisDB:   envInt("REDIS_DB", 0),
		StatusTTL: envDuration("STATUS_TTL", 24*time.Hour),

		LogLevel: envOr("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentDocs <= 0 {
		cfg.MaxConcurrentDocs = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.TaskTTL <= 0 {
		cfg.TaskTTL = 1 * time.Hour
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 24 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	switch storage.Backend(c.StorageBackend) {
	case storage.BackendLocal:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for local storage")
		}
	case storage.BackendMinio:
		if c.Minio.AccessKey == "" || c.Minio.SecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for minio storage")
		}
	case storage.BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be local, minio or s3, got %q", c.StorageBackend)
	}
	switch c.QueueMode {
	case QueueLocal:
	case QueueAsynq:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for asynq queue mode")
		}
		if storage.Backend(c.StorageBackend) == storage.BackendLocal {
			return fmt.Errorf("asynq queue mode needs shared storage (minio or s3)")
		}
	default:
		return fmt.Errorf("QUEUE_MODE must be local or asynq, got %q", c.QueueMode)
	}
	if _, err := c.ChunkDefaults(); err != nil {
		return err
	}
	return nil
}

// StorageOptions selects the configured backend.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend: storage.Backend(c.StorageBackend),
		Root:    c.DataDir,
		Minio:   c.Minio,
		S3:      c.S3,
	}
}

// ChunkDefaults is the chunking config applied to every request before its
// own policy: the built-in defaults, then the DEFAULT_* variables, then the
// policy file.
func (c Config) ChunkDefaults() (chunker.Config, error) {
	base := chunker.DefaultConfig()
	base.ChunkSize = c.DefaultChunkSize
	base.IndexSize = c.DefaultIndexSize
	base.Overlap = c.DefaultChunkOverlap
	if err := base.Validate(); err != nil {
		return chunker.Config{}, fmt.Errorf("chunk defaults: %w", err)
	}
	if c.ChunkPolicyFile == "" {
		return base, nil
	}
	p, err := chunker.LoadPolicyFile(c.ChunkPolicyFile)
	if err != nil {
		return chunker.Config{}, err
	}
	cfg, err := p.Resolve(base)
	if err != nil {
		return chunker.Config{}, fmt.Errorf("chunk policy %s: %w", c.ChunkPolicyFile, err)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
