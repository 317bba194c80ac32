package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundbench/huddle/internal/config"
	"github.com/soundbench/huddle/internal/memory"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored items for the configured session",
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

			n, err := store.ClearSession(ctx, cfg.Session)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d items from session %s\n", n, cfg.Session)
			return nil
		},
	}
}
