// Command tavern runs the Bottles tavern backend.
//
// @title                      Bottles Tavern API
// @version                    1.0
// @description                Story exchange, daily quotas and whiskey tipping for wallet users.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/bottles-tavern/internal/config"
	"github.com/tbourn/bottles-tavern/internal/sysutil"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	var cfg config.Config

	root := &cobra.Command{
		Use:          "tavern",
		Short:        "Bottles tavern backend",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			c, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg = c
			sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env when present)")

	root.AddCommand(
		newServeCmd(&cfg),
		newMigrateCmd(&cfg),
		newSeedCmd(&cfg),
	)
	return root
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}
