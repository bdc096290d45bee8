package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiva/tripmatch/config"
	"github.com/shiva/tripmatch/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Trip assignment and availability matching service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Env)
	return cfg, nil
}
