package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/campus-engage-api/internal/database"
	"github.com/noah-isme/campus-engage-api/internal/repository"
	"github.com/noah-isme/campus-engage-api/internal/service"
)

func newSeedCmd(logger *zerolog.Logger) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create challenges from a YAML fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open fixtures: %w", err)
			}
			defer handle.Close()

			fixtures, err := service.ParseChallengeFixtures(handle)
			if err != nil {
				return err
			}

			b, err := connect(cmd.Context(), *logger, false)
			if err != nil {
				return err
			}
			defer b.close()

			if err := database.Migrate(b.db); err != nil {
				return err
			}

			svc, err := b.services()
			if err != nil {
				return err
			}

			seeder := service.NewSeedService(svc.challenges, repository.NewChallengeRepository(b.db), *logger)
			result, err := seeder.SeedChallenges(cmd.Context(), fixtures)
			if err != nil {
				return err
			}

			logger.Info().Int("created", result.Created).Int("skipped", result.Skipped).Str("file", file).Msg("challenges seeded")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "challenges.yaml", "path to the challenge fixtures")
	return cmd
}
