package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "docslice",
		Short:         "Chunk documents and merge them with their images into result artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(processCmd(), chunkCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
