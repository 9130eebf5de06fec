package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/convert"
	"github.com/dgallion1/docslice/internal/document"
	"github.com/dgallion1/docslice/internal/media"
	"github.com/spf13/cobra"
)

func chunkCmd() *cobra.Command {
	var policyPath string
	var indexSeq bool

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Print the chunk sequence of one file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(policyPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			conv, err := convert.Convert(filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			anchored := media.Anchor(conv.Assets, conv.Text)

			var chunks []document.Chunk
			if indexSeq {
				chunks, err = chunker.ChunkIndex(anchored.Text, cfg)
			} else {
				chunks, err = chunker.Chunk(anchored.Text, cfg)
			}
			if err != nil {
				return err
			}
			if chunks == nil {
				chunks = []document.Chunk{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if err := enc.Encode(chunks); err != nil {
				return fmt.Errorf("encode chunks: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&policyPath, "policy", "p", "", "chunk policy file (.yaml, .yml or .json)")
	cmd.Flags().BoolVar(&indexSeq, "index", false, "print the secondary index sequence instead")
	return cmd
}
