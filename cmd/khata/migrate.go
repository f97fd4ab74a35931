package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chitragupta/khata/internal/common"
	"github.com/chitragupta/khata/internal/config"
	"github.com/chitragupta/khata/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := storage.NewSQLiteStorage(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					common.LogError(closeErr, "Failed to close database", nil)
				}
			}()

			before, err := db.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			if err := db.Migrate(ctx); err != nil {
				return common.NewUserError("migration failed", err)
			}

			after, err := db.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			if after > before {
				cmd.Printf("Applied %d migration(s), schema version is now %d.\n", after-before, after)
			} else {
				cmd.Printf("Database schema is up to date (version %d).\n", after)
			}
			return nil
		},
	}
}
