package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yukikurage/task-sync/internal/config"
	"github.com/yukikurage/task-sync/internal/database"
	"github.com/yukikurage/task-sync/internal/logging"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)

			db, err := database.Connect(cfg, log)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get database handle: %w", err)
			}
			defer sqlDB.Close()

			return database.Migrate(db, log)
		},
	}
}
