package cmd

import (
	"tip-gate-backend/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connectDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repository.Migrate(db); err != nil {
			return err
		}
		log.Info().Msg("Migrations applied")
		return nil
	},
}
