package cmd

import (
	"fmt"

	"kazi/config"
	"kazi/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err := newLogger(cfg.Env)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migration completed", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
