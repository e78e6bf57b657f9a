package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/campus-engage-api/internal/database"
)

func newMigrateCmd(logger *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := connect(cmd.Context(), *logger, false)
			if err != nil {
				return err
			}
			defer b.close()

			if err := database.Migrate(b.db); err != nil {
				return err
			}
			logger.Info().Msg("migrations applied")
			return nil
		},
	}
}
