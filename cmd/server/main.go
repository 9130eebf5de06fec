package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docslice/internal/api"
	"github.com/dgallion1/docslice/internal/config"
	"github.com/dgallion1/docslice/internal/convert"
	"github.com/dgallion1/docslice/internal/index"
	"github.com/dgallion1/docslice/internal/logging"
	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/dgallion1/docslice/internal/queue"
	"github.com/dgallion1/docslice/internal/storage"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	chunkDefaults, err := cfg.ChunkDefaults()
	if err != nil {
		log.Error("invalid chunk policy", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.StorageOptions(), log)
	if err != nil {
		log.Error("storage init failed", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}

	// Initialize the task service for the configured queue mode.
	var (
		tasks api.TaskService
		idx   *index.Index
		deps  api.Deps
		stop  func()
	)
	switch cfg.QueueMode {
	case config.QueueAsynq:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		ac := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		idx = index.New(store, queue.NewRedisLocker(rdb, queue.IndexLockKey, 30*time.Second))
		tasks = queue.NewClient(ac, queue.NewStatusStore(rdb, cfg.StatusTTL, log), store, log, cfg.TaskTimeout)
		stop = func() {
			ac.Close()
			rdb.Close()
		}
	default:
		idx = index.New(store, nil)
		conv := convert.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}
		mgr := pipeline.NewManager(store, idx, log, pipeline.ManagerOptions{
			MaxConcurrentDocs: cfg.MaxConcurrentDocs,
			TaskTimeout:       cfg.TaskTimeout,
			Convert:           conv.Convert,
		})
		orch := pipeline.NewOrchestrator(mgr, log, pipeline.OrchestratorOptions{
			WorkerCount:  cfg.WorkerCount,
			MaxQueueSize: cfg.MaxQueueSize,
			TaskTTL:      cfg.TaskTTL,
		})
		orch.Start(ctx)
		tasks = orch
		deps.Stats = mgr.Stats()
		stop = orch.Stop
	}
	deps.Tasks = tasks
	deps.Store = store
	deps.Index = idx

	// Initialize HTTP server.
	srv := api.NewServer(deps, log, api.Options{
		APIKey:         cfg.APIKey,
		MaxUploadBytes: cfg.MaxUploadBytes,
		ChunkDefaults:  chunkDefaults,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		stop()
	}()

	log.Info("starting docslice",
		"port", cfg.Port,
		"storage", cfg.StorageBackend,
		"queue", cfg.QueueMode,
		"auth", cfg.APIKey != "",
		slog.Int("chunk_size", chunkDefaults.ChunkSize),
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
