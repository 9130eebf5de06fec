package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/index"
	"github.com/dgallion1/docslice/internal/logging"
	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/dgallion1/docslice/internal/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func processCmd() *cobra.Command {
	var out string
	var policyPath string
	var timeout time.Duration
	var concurrency int
	var logLevel string

	cmd := &cobra.Command{
		Use:   "process <file>...",
		Short: "Run one task over the given files and print its snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(policyPath)
			if err != nil {
				return err
			}

			sources := make([]pipeline.Source, 0, len(args))
			for _, p := range args {
				data, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				sources = append(sources, pipeline.Source{Filename: filepath.Base(p), Data: data})
			}

			store, err := storage.NewLocal(out)
			if err != nil {
				return err
			}
			log, closer := logging.New(logging.Options{Level: logLevel, Output: cmd.ErrOrStderr()})
			defer closer.Close()

			mgr := pipeline.NewManager(store, index.New(store, nil), log, pipeline.ManagerOptions{
				MaxConcurrentDocs: concurrency,
				TaskTimeout:       timeout,
			})
			snap := mgr.Process(cmd.Context(), pipeline.NewTask(uuid.NewString(), sources, cfg))

			b, _ := json.MarshalIndent(snap, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			if snap.Status == pipeline.StatusFailed {
				return fmt.Errorf("task %s failed", snap.TaskID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "./data", "storage root for task directories and the index")
	cmd.Flags().StringVarP(&policyPath, "policy", "p", "", "chunk policy file (.yaml, .yml or .json)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "task deadline (0 disables)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "documents processed in parallel")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	return cmd
}

// loadConfig resolves an optional policy file against the built-in defaults.
func loadConfig(policyPath string) (chunker.Config, error) {
	if policyPath == "" {
		return chunker.DefaultConfig(), nil
	}
	p, err := chunker.LoadPolicyFile(policyPath)
	if err != nil {
		return chunker.Config{}, err
	}
	return p.Resolve(chunker.DefaultConfig())
}
