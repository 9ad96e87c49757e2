package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/bottles-tavern/internal/config"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := repo.Open(*cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close(db) }()
			if err := repo.AutoMigrate(db); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.DBDriver).Msg("schema up to date")
			return nil
		},
	}
}
