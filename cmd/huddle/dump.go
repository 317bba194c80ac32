package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundbench/huddle/internal/config"
	"github.com/soundbench/huddle/internal/memory"
)

func newDumpCmd() *cobra.Command {
	var (
		kind  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the session's stored items as JSON lines",
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

			items, err := store.SessionItems(ctx, cfg.Session, kind, limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, item := range items {
				if err := enc.Encode(item); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind: final, act or answer")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum items to print")
	return cmd
}
