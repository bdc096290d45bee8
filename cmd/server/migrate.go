package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiva/tripmatch/migrations"
	"github.com/shiva/tripmatch/pkg/db"
	"github.com/shiva/tripmatch/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.New("migrate")

		pool, err := db.NewPostgresPool(cmd.Context(), cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		defer pool.Close()

		applied, err := migrations.Up(cmd.Context(), pool, cfg.Store.NotifyChannel)
		if err != nil {
			return err
		}
		log.Info().Strs("applied", applied).Str("notify_channel", cfg.Store.NotifyChannel).Msg("schema up to date")
		return nil
	},
}
