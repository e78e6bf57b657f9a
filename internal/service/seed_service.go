package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/repository"
)

// ChallengeFixtures is the document read by the seed command.
type ChallengeFixtures struct {
	Challenges []dto.ChallengeCreateRequest `yaml:"challenges"`
}

// SeedResult reports what a seed run changed.
type SeedResult struct {
	Created int
	Skipped int
}

// SeedService loads challenge fixtures into the database.
type SeedService interface {
	SeedChallenges(ctx context.Context, fixtures ChallengeFixtures) (SeedResult, error)
}

type seedService struct {
	challenges ChallengeService
	repo       repository.ChallengeRepository
	logger     zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(challenges ChallengeService, repo repository.ChallengeRepository, logger zerolog.Logger) SeedService {
	return &seedService{
		challenges: challenges,
		repo:       repo,
		logger:     logger.With().Str("component", "seed_service").Logger(),
	}
}

// ParseChallengeFixtures decodes a YAML fixture document. Unknown keys are rejected.
func ParseChallengeFixtures(r io.Reader) (ChallengeFixtures, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var fixtures ChallengeFixtures
	if err := decoder.Decode(&fixtures); err != nil {
		if err == io.EOF {
			return ChallengeFixtures{}, nil
		}
		return ChallengeFixtures{}, fmt.Errorf("parse challenge fixtures: %w", err)
	}
	return fixtures, nil
}

// SeedChallenges creates every fixture whose title does not exist yet, so
// running the same file twice is harmless.
func (s *seedService) SeedChallenges(ctx context.Context, fixtures ChallengeFixtures) (SeedResult, error) {
	existing, err := s.repo.List(ctx, repository.ChallengeFilter{})
	if err != nil {
		return SeedResult{}, err
	}

	titles := make(map[string]struct{}, len(existing))
	for _, challenge := range existing {
		titles[strings.ToLower(strings.TrimSpace(challenge.Title))] = struct{}{}
	}

	actor := ActivityActor{Role: "system"}
	result := SeedResult{}
	for i, fixture := range fixtures.Challenges {
		key := strings.ToLower(strings.TrimSpace(fixture.Title))
		if _, ok := titles[key]; ok {
			result.Skipped++
			continue
		}

		if _, err := s.challenges.Create(ctx, fixture, actor); err != nil {
			return result, fmt.Errorf("seed challenge %d (%q): %w", i, fixture.Title, err)
		}
		titles[key] = struct{}{}
		result.Created++
	}

	s.logger.Info().Int("created", result.Created).Int("skipped", result.Skipped).Msg("challenges seeded")
	return result, nil
}
