package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/google/go-cmp/cmp"
)

// clearEnv makes key unset for the test and restores it afterwards.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE_BACKEND", "QUEUE_MODE", "DEFAULT_CHUNK_SIZE", "DEFAULT_CHUNK_OVERLAP", "MAX_UPLOAD_BYTES"} {
		clearEnv(t, k)
	}
	cfg := fromEnv()
	if cfg.Port != "8090" || cfg.StorageBackend != "local" || cfg.QueueMode != QueueLocal {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.DefaultChunkSize != 500 || cfg.DefaultChunkOverlap != 0.1 {
		t.Errorf("chunk defaults = %d/%v", cfg.DefaultChunkSize, cfg.DefaultChunkOverlap)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("DEFAULT_CHUNK_OVERLAP", "half")
	cfg := fromEnv()
	if cfg.WorkerCount != 4 || cfg.DefaultChunkOverlap != 0.1 {
		t.Errorf("expected fallbacks, got %d/%v", cfg.WorkerCount, cfg.DefaultChunkOverlap)
	}
}

func TestLoadFile_DotEnv(t *testing.T) {
	clearEnv(t, "WORKER_COUNT")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("WORKER_COUNT=7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.WorkerCount != 7 {
		t.Errorf("WorkerCount = %d, want 7", cfg.WorkerCount)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := fromEnv()
	base.StorageBackend = "local"
	base.QueueMode = QueueLocal
	base.ChunkPolicyFile = ""
	base.DefaultChunkSize = 500
	base.DefaultChunkOverlap = 0.1

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.StorageBackend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = "s3"; c.S3.Bucket = "" }},
		{"minio without keys", func(c *Config) { c.StorageBackend = "minio"; c.Minio.AccessKey = "" }},
		{"unknown queue", func(c *Config) { c.QueueMode = "kafka" }},
		{"asynq on local disk", func(c *Config) { c.QueueMode = QueueAsynq }},
		{"bad overlap", func(c *Config) { c.DefaultChunkOverlap = 1.5 }},
		{"zero chunk size", func(c *Config) { c.DefaultChunkSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestChunkDefaults_PolicyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	policy := "chunk_size: 800\nsplit_flag:\n  - \"\\n## \"\nfilters:\n  - \"<!--.*?-->\"\n"
	if err := os.WriteFile(path, []byte(policy), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Config{DefaultChunkSize: 500, DefaultChunkOverlap: 0.2, ChunkPolicyFile: path}
	got, err := cfg.ChunkDefaults()
	if err != nil {
		t.Fatalf("ChunkDefaults: %v", err)
	}
	want := chunker.Config{
		ChunkSize: 800,
		Overlap:   0.2,
		SplitFlag: []string{"\n## "},
		Filters:   []string{"<!--.*?-->"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ChunkDefaults mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkDefaults_RejectsUnknownPolicyField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(path, []byte(`{"chunk_size": 300, "chunk_sz": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Config{DefaultChunkSize: 500, DefaultChunkOverlap: 0.1, ChunkPolicyFile: path}
	if _, err := cfg.ChunkDefaults(); err == nil {
		t.Fatal("expected unknown field error")
	}

	cfg.ChunkPolicyFile = filepath.Join(t.TempDir(), "nope.yaml")
	var pe *os.PathError
	if _, err := cfg.ChunkDefaults(); !errors.As(err, &pe) {
		t.Fatalf("expected path error for missing policy, got %v", err)
	}
}
