package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docslice/internal/config"
	"github.com/dgallion1/docslice/internal/convert"
	"github.com/dgallion1/docslice/internal/index"
	"github.com/dgallion1/docslice/internal/logging"
	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/dgallion1/docslice/internal/queue"
	"github.com/dgallion1/docslice/internal/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()
	log = log.With("component", "worker")

	cfg.QueueMode = config.QueueAsynq
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.StorageOptions(), log)
	if err != nil {
		log.Error("storage init failed", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	status := queue.NewStatusStore(rdb, cfg.StatusTTL, log)
	idx := index.New(store, queue.NewRedisLocker(rdb, queue.IndexLockKey, 30*time.Second))
	conv := convert.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}
	mgr := pipeline.NewManager(store, idx, log, pipeline.ManagerOptions{
		MaxConcurrentDocs: cfg.MaxConcurrentDocs,
		TaskTimeout:       cfg.TaskTimeout,
		Observer:          status,
		Convert:           conv.Convert,
	})

	w := queue.NewWorker(queue.WorkerConfig{
		RedisAddr:   cfg.RedisAddr,
		RedisDB:     cfg.RedisDB,
		Concurrency: cfg.WorkerCount,
	}, mgr, store, status, log)
	if err := w.Start(); err != nil {
		log.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	log.Info("worker started", "concurrency", cfg.WorkerCount, "redis", cfg.RedisAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker...")
	w.Stop()
	log.Info("worker stopped")
}
