package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundbench/huddle/internal/config"
	"github.com/soundbench/huddle/internal/importer"
	"github.com/soundbench/huddle/internal/memory"
)

func newImportCmd() *cobra.Command {
	var startMs float64

	cmd := &cobra.Command{
		Use:   "import <transcript-file>",
		Short: "Seed the session's memory from a transcript file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)

			if cfg.DatabaseURL == "" {
				return fmt.Errorf("database_url is required (set DATABASE_URL)")
			}

			ctx := context.Background()
			store, err := memory.New(ctx, cfg.DatabaseURL, cfg.MemoryOptions())
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer store.Close()

			n, err := importer.New(store, nil).ImportFile(ctx, args[0], startMs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d lines into session %s\n", n, cfg.Session)
			return nil
		},
	}
	cmd.Flags().Float64Var(&startMs, "start-ms", 0, "timestamp of the first imported line, in ms")
	return cmd
}
