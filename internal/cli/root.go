package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Execute runs the engage command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var level string
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cmd := &cobra.Command{
		Use:           "engage",
		Short:         "Campus engagement gamification API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := zerolog.ParseLevel(level)
			if err != nil {
				return err
			}
			logger = logger.Level(parsed)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&level, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.AddCommand(newServeCmd(&logger))
	cmd.AddCommand(newMigrateCmd(&logger))
	cmd.AddCommand(newSeedCmd(&logger))
	cmd.AddCommand(newReviewCmd(&logger))
	return cmd
}
