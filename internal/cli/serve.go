package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/campus-engage-api/internal/database"
	"github.com/noah-isme/campus-engage-api/internal/handler"
	"github.com/noah-isme/campus-engage-api/internal/middleware"
	"github.com/noah-isme/campus-engage-api/internal/router"
)

func newServeCmd(logger *zerolog.Logger) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *logger, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations before serving")
	return cmd
}

func runServer(parent context.Context, logger zerolog.Logger, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := connect(ctx, logger, true)
	if err != nil {
		return err
	}
	defer b.close()

	if migrate {
		if err := database.Migrate(b.db); err != nil {
			return err
		}
	}

	svc, err := b.services()
	if err != nil {
		return err
	}

	svc.bus.Start(ctx)
	svc.ranking.Start(ctx, svc.bus)

	cfg := b.cfg
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.EvidenceMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:          &logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		TrackedPrefixes: []string{"/api/admin", "/api/v2/gamification"},
	})
	router.Register(app, cfg, router.Dependencies{
		ChallengeHandler:             handler.NewChallengeHandler(svc.challenges, svc.participation, logger),
		RankingHandler:               handler.NewRankingHandler(svc.ranking, logger),
		AdminChallengeHandler:        handler.NewAdminChallengeHandler(svc.challenges, logger),
		AdminSubmissionReviewHandler: handler.NewAdminSubmissionReviewHandler(svc.reviews, svc.feedback, svc.bus, logger),
		AdminActivityHandler:         handler.NewAdminActivityHandler(svc.activity, logger),
		HealthDependencies:           b.healthDependencies(),
		JWTMiddleware:                middleware.JWTProtected(cfg.JWTSecret),
		SubmissionRateLimit:          cfg.SubmissionRateLimit,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		errCh <- app.Listen(cfg.HTTPAddress())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}

func (b *backend) healthDependencies() []handler.HealthDependency {
	dependencies := []handler.HealthDependency{{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := b.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if b.redis != nil {
		dependencies = append(dependencies, handler.HealthDependency{
			Name:  "redis",
			Check: func(ctx context.Context) error { return b.redis.Ping(ctx).Err() },
		})
	}
	if b.nats != nil {
		dependencies = append(dependencies, handler.HealthDependency{
			Name: "nats",
			Check: func(ctx context.Context) error {
				return b.nats.FlushWithContext(ctx)
			},
		})
	}
	return dependencies
}
