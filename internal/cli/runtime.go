package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-engage-api/internal/config"
	"github.com/noah-isme/campus-engage-api/internal/database"
	"github.com/noah-isme/campus-engage-api/internal/repository"
	"github.com/noah-isme/campus-engage-api/internal/service"
	"github.com/noah-isme/campus-engage-api/pkg/ai"
	cloud "github.com/noah-isme/campus-engage-api/pkg/cloudinary"
)

// backend holds the connections shared by every subcommand.
type backend struct {
	cfg    config.Config
	logger zerolog.Logger
	db     *gorm.DB
	redis  *redis.Client
	nats   *nats.Conn
}

func connect(ctx context.Context, logger zerolog.Logger, withMessaging bool) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	b := &backend{cfg: cfg, logger: logger, db: db}
	if !withMessaging {
		return b, nil
	}

	if cfg.RedisURL != "" {
		b.redis, err = database.ConnectRedis(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			b.close()
			return nil, err
		}
	} else {
		logger.Warn().Msg("redis not configured; ranking cache and cross-node events disabled")
	}

	b.nats, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		b.close()
		return nil, err
	}

	return b, nil
}

func (b *backend) close() {
	if b.nats != nil {
		b.nats.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		if sqlDB, err := b.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// services is the wired application graph.
type services struct {
	bus           service.SubmissionEventBus
	activity      service.ActivityService
	challenges    service.ChallengeService
	participation service.ParticipationService
	reviews       service.SubmissionReviewService
	ranking       service.RankingService
	feedback      service.FeedbackAssistantService
}

func (b *backend) services() (services, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	challengeRepo := repository.NewChallengeRepository(b.db)
	submissionRepo := repository.NewChallengeSubmissionRepository(b.db)
	activityRepo := repository.NewActivityLogRepository(b.db)

	bus := service.NewSubmissionEventBus(b.redis, b.nats, b.cfg.EventChannel, b.logger)
	activity := service.NewActivityService(activityRepo, b.logger)

	var storage service.EvidenceStorage
	uploader, err := cloud.New(cloud.Config{
		CloudName: b.cfg.CloudinaryCloudName,
		APIKey:    b.cfg.CloudinaryAPIKey,
		APISecret: b.cfg.CloudinaryAPISecret,
		Folder:    b.cfg.CloudinaryUploadFolder,
	}, b.logger)
	switch {
	case err == nil:
		storage = uploader
	case errors.Is(err, cloud.ErrMissingCredentials):
		b.logger.Warn().Msg("cloudinary not configured; evidence uploads disabled")
	default:
		return services{}, err
	}

	reviews := service.NewSubmissionReviewService(submissionRepo, validate, activity, bus, b.logger)

	var feedback service.FeedbackAssistantService
	if b.cfg.AIEnabled() {
		assistant, err := ai.NewOpenAIAssistant(ai.OpenAIConfig{
			APIKey: b.cfg.OpenAIAPIKey,
			Model:  b.cfg.AIModel,
			Logger: b.logger,
		})
		if err != nil {
			return services{}, fmt.Errorf("configure feedback assistant: %w", err)
		}
		feedback = service.NewFeedbackAssistantService(reviews, assistant, b.logger)
	}

	return services{
		bus:           bus,
		activity:      activity,
		challenges:    service.NewChallengeService(challengeRepo, validate, activity, b.logger),
		participation: service.NewParticipationService(challengeRepo, submissionRepo, storage, bus, validate, b.cfg.EvidenceMaxSizeMB, b.logger),
		reviews:       reviews,
		ranking:       service.NewRankingService(submissionRepo, b.redis, b.cfg.RankingCacheTTL, b.logger),
		feedback:      feedback,
	}, nil
}
