package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/observability"
	"github.com/noah-isme/campus-engage-api/internal/repository"
)

const (
	defaultRankingLimit = 50
	maxRankingLimit     = 500
	rankingCachePrefix  = "ranking:top:"
)

// rankingGenerationKey is bumped by every invalidation. A computed leaderboard
// is only cached when the generation it started from is still current.
const rankingGenerationKey = "ranking:generation"

var errStaleRanking = errors.New("ranking computed before invalidation")

// RankingService produces the points leaderboard.
type RankingService interface {
	Top(ctx context.Context, limit int) (dto.RankingResponse, error)
	Invalidate(ctx context.Context) error
	Start(ctx context.Context, bus SubmissionEventBus)
}

type rankingService struct {
	repo     repository.ChallengeSubmissionRepository
	cache    *redis.Client
	cacheTTL time.Duration
	group    singleflight.Group
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewRankingService constructs the leaderboard service. The cache is optional.
func NewRankingService(repo repository.ChallengeSubmissionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) RankingService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &rankingService{
		repo:     repo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "ranking_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/campus-engage-api/internal/service/ranking"),
		now:      time.Now,
	}
}

func (s *rankingService) Top(ctx context.Context, limit int) (dto.RankingResponse, error) {
	if limit <= 0 {
		limit = defaultRankingLimit
	}
	if limit > maxRankingLimit {
		limit = maxRankingLimit
	}

	ctx, span := s.tracer.Start(ctx, "ranking.top", trace.WithAttributes(attribute.Int("ranking.limit", limit)))
	defer span.End()

	cacheKey := rankingCachePrefix + strconv.Itoa(limit)
	if cached, ok := s.readCache(ctx, cacheKey); ok {
		observability.RankingCache().WithLabelValues("hit").Inc()
		cached.CacheHit = true
		return cached, nil
	}
	observability.RankingCache().WithLabelValues("miss").Inc()

	generation := s.generation(ctx)
	value, err, _ := s.group.Do(cacheKey+"@"+strconv.FormatInt(generation, 10), func() (interface{}, error) {
		return s.compute(ctx, cacheKey, limit, generation)
	})
	if err != nil {
		span.RecordError(err)
		return dto.RankingResponse{}, err
	}

	return value.(dto.RankingResponse), nil
}

func (s *rankingService) compute(ctx context.Context, cacheKey string, limit int, generation int64) (dto.RankingResponse, error) {
	rows, err := s.repo.Ranking(ctx, limit)
	if err != nil {
		return dto.RankingResponse{}, fmt.Errorf("load ranking: %w", err)
	}

	entries := make([]dto.RankingEntry, 0, len(rows))
	rank := 0
	for i, row := range rows {
		if i == 0 || row.TotalPoints != rows[i-1].TotalPoints {
			rank = i + 1
		}
		entries = append(entries, dto.RankingEntry{
			Rank:        rank,
			UserID:      row.UserID,
			TotalPoints: row.TotalPoints,
			Completed:   row.Completed,
		})
	}

	response := dto.RankingResponse{Entries: entries, GeneratedAt: s.now().UTC()}

	s.store(ctx, cacheKey, response, generation)
	return response, nil
}

// generation returns the current invalidation generation; a missing key is 0.
func (s *rankingService) generation(ctx context.Context) int64 {
	if s.cache == nil {
		return 0
	}
	value, err := s.cache.Get(ctx, rankingGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn().Err(err).Msg("failed to read ranking generation")
	}
	return value
}

// store caches response unless an invalidation happened after generation was
// read. The check and the write run in one WATCH transaction so an invalidation
// from another node in between aborts the write.
func (s *rankingService) store(ctx context.Context, cacheKey string, response dto.RankingResponse, generation int64) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(response)
	if err != nil {
		return
	}

	err = s.cache.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, rankingGenerationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleRanking
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey, payload, s.cacheTTL)
			return nil
		})
		return err
	}, rankingGenerationKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleRanking), errors.Is(err, redis.TxFailedErr):
		observability.RankingCache().WithLabelValues("stale").Inc()
		s.logger.Debug().Str("key", cacheKey).Msg("skipped caching ranking computed before invalidation")
	default:
		s.logger.Warn().Err(err).Msg("failed to store ranking cache")
	}
}

func (s *rankingService) readCache(ctx context.Context, key string) (dto.RankingResponse, bool) {
	if s.cache == nil {
		return dto.RankingResponse{}, false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read ranking cache")
		}
		return dto.RankingResponse{}, false
	}

	var response dto.RankingResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		return dto.RankingResponse{}, false
	}
	return response, true
}

// Invalidate bumps the generation so in-flight computations are not cached,
// then drops every cached leaderboard size.
func (s *rankingService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Incr(ctx, rankingGenerationKey).Err(); err != nil {
		return fmt.Errorf("bump ranking generation: %w", err)
	}

	var keys []string
	iter := s.cache.Scan(ctx, 0, rankingCachePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Del(ctx, keys...).Err()
}

// Start drops the cache whenever a submission changes.
func (s *rankingService) Start(ctx context.Context, bus SubmissionEventBus) {
	if bus == nil {
		return
	}

	events, cancel := bus.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := s.Invalidate(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to invalidate ranking cache")
				}
			}
		}
	}()
}
