package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/models"
	"github.com/noah-isme/campus-engage-api/internal/repository"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

var (
	// ErrChallengeNotFound indicates the challenge does not exist.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeInactive indicates the challenge no longer accepts submissions.
	ErrChallengeInactive = errors.New("challenge is not active")
	// ErrInvalidChallenge indicates a definition that cannot be scored.
	ErrInvalidChallenge = errors.New("invalid challenge definition")
)

// ChallengeService manages challenge definitions.
type ChallengeService interface {
	Create(ctx context.Context, payload dto.ChallengeCreateRequest, actor ActivityActor) (dto.ChallengeResponse, error)
	Update(ctx context.Context, id uint, payload dto.ChallengeUpdateRequest, actor ActivityActor) (dto.ChallengeResponse, error)
	AdminList(ctx context.Context) ([]dto.ChallengeResponse, error)
	AdminGet(ctx context.Context, id uint) (dto.ChallengeResponse, error)
	ListActive(ctx context.Context) ([]dto.ChallengeResponse, error)
	Get(ctx context.Context, id uint) (dto.ChallengeResponse, error)
}

type challengeService struct {
	repo      repository.ChallengeRepository
	validator *validator.Validate
	activity  ActivityRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewChallengeService constructs the challenge service.
func NewChallengeService(repo repository.ChallengeRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) ChallengeService {
	return &challengeService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "challenge_service").Logger(),
		now:       time.Now,
	}
}

func (s *challengeService) Create(ctx context.Context, payload dto.ChallengeCreateRequest, actor ActivityActor) (dto.ChallengeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChallengeResponse{}, err
	}

	model := models.Challenge{
		Title:          strings.TrimSpace(payload.Title),
		Description:    strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		EvaluationType: payload.EvaluationType,
		Points:         payload.Points,
		QRCode:         strings.TrimSpace(payload.QRCode),
		Active:         true,
	}
	if payload.Active != nil {
		model.Active = *payload.Active
	}

	requirements, err := buildRequirements(payload.Requirements)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}
	model.SetRequirements(requirements)
	model.SetQuiz(buildQuiz(payload.Quiz))

	if err := validateDefinition(model); err != nil {
		return dto.ChallengeResponse{}, err
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		return dto.ChallengeResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "challenge.created",
		EntityType: "challenge",
		EntityID:   uintPtr(model.ID),
		Metadata: map[string]interface{}{
			"evaluation_type": model.EvaluationType,
			"max_points":      model.MaxPoints(),
		},
	})

	return dto.NewAdminChallengeResponse(model), nil
}

func (s *challengeService) Update(ctx context.Context, id uint, payload dto.ChallengeUpdateRequest, actor ActivityActor) (dto.ChallengeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChallengeResponse{}, err
	}

	model, err := s.load(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	changed := []string{}
	if payload.Title != nil {
		model.Title = strings.TrimSpace(*payload.Title)
		changed = append(changed, "title")
	}
	if payload.Description != nil {
		model.Description = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
		changed = append(changed, "description")
	}
	if payload.Points != nil {
		model.Points = *payload.Points
		changed = append(changed, "points")
	}
	if payload.QRCode != nil {
		model.QRCode = strings.TrimSpace(*payload.QRCode)
		changed = append(changed, "qr_code")
	}
	if payload.Quiz != nil {
		model.SetQuiz(buildQuiz(payload.Quiz))
		changed = append(changed, "quiz")
	}
	if payload.Requirements != nil {
		requirements, err := buildRequirements(payload.Requirements)
		if err != nil {
			return dto.ChallengeResponse{}, err
		}
		model.SetRequirements(requirements)
		changed = append(changed, "requirements")
	}
	if payload.Active != nil {
		model.Active = *payload.Active
		changed = append(changed, "active")
	}

	if err := validateDefinition(model); err != nil {
		return dto.ChallengeResponse{}, err
	}

	model.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, &model); err != nil {
		return dto.ChallengeResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "challenge.updated",
		EntityType: "challenge",
		EntityID:   uintPtr(model.ID),
		Metadata:   map[string]interface{}{"fields": changed},
	})

	return dto.NewAdminChallengeResponse(model), nil
}

func (s *challengeService) AdminList(ctx context.Context) ([]dto.ChallengeResponse, error) {
	items, err := s.repo.List(ctx, repository.ChallengeFilter{})
	if err != nil {
		return nil, err
	}
	responses := make([]dto.ChallengeResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.NewAdminChallengeResponse(item))
	}
	return responses, nil
}

func (s *challengeService) AdminGet(ctx context.Context, id uint) (dto.ChallengeResponse, error) {
	model, err := s.load(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}
	return dto.NewAdminChallengeResponse(model), nil
}

func (s *challengeService) ListActive(ctx context.Context) ([]dto.ChallengeResponse, error) {
	items, err := s.repo.List(ctx, repository.ChallengeFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return dto.NewChallengeResponseSlice(items), nil
}

func (s *challengeService) Get(ctx context.Context, id uint) (dto.ChallengeResponse, error) {
	model, err := s.load(ctx, id)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}
	if !model.Active {
		return dto.ChallengeResponse{}, ErrChallengeNotFound
	}
	return dto.NewChallengeResponse(model), nil
}

func (s *challengeService) load(ctx context.Context, id uint) (models.Challenge, error) {
	model, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, err
	}
	return model, nil
}

func buildRequirements(items []dto.RequirementRequest) ([]scoring.Requirement, error) {
	requirements := make([]scoring.Requirement, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: requirement id must not be blank", ErrInvalidChallenge)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate requirement id %q", ErrInvalidChallenge, id)
		}
		seen[id] = struct{}{}

		requirements = append(requirements, scoring.Requirement{
			ID:                 id,
			Name:               strings.TrimSpace(item.Name),
			Description:        strings.TrimSpace(item.Description),
			Points:             item.Points,
			SubmissionKind:     scoring.SubmissionKind(item.SubmissionKind),
			AcceptedCategories: item.AcceptedCategories,
			MaxSizeBytes:       item.MaxSize,
		})
	}
	return requirements, nil
}

func buildQuiz(items []dto.QuizQuestionRequest) []models.QuizQuestion {
	questions := make([]models.QuizQuestion, 0, len(items))
	for _, item := range items {
		options := make([]models.QuizOption, 0, len(item.Options))
		for _, option := range item.Options {
			options = append(options, models.QuizOption{
				ID:      strings.TrimSpace(option.ID),
				Text:    strings.TrimSpace(option.Text),
				Correct: option.Correct,
			})
		}
		questions = append(questions, models.QuizQuestion{
			ID:      strings.TrimSpace(item.ID),
			Prompt:  strings.TrimSpace(item.Prompt),
			Options: options,
		})
	}
	return questions
}

func validateDefinition(model models.Challenge) error {
	evaluation := scoring.EvaluationType(model.EvaluationType)
	if evaluation != scoring.EvaluationFile && len(model.RequirementList()) > 0 {
		return fmt.Errorf("%w: only file challenges may define requirements", ErrInvalidChallenge)
	}

	switch scoring.EvaluationType(model.EvaluationType) {
	case scoring.EvaluationFile:
		if len(model.RequirementList()) == 0 {
			return fmt.Errorf("%w: file challenges need at least one requirement", ErrInvalidChallenge)
		}
	case scoring.EvaluationQRCode:
		if model.QRCode == "" {
			return fmt.Errorf("%w: qrcode challenges need a code", ErrInvalidChallenge)
		}
	case scoring.EvaluationQuiz:
		for _, question := range model.QuizQuestions() {
			correct := 0
			for _, option := range question.Options {
				if option.Correct {
					correct++
				}
			}
			if correct != 1 {
				return fmt.Errorf("%w: question %q needs exactly one correct option", ErrInvalidChallenge, question.ID)
			}
		}
		if len(model.QuizQuestions()) == 0 {
			return fmt.Errorf("%w: quiz challenges need questions", ErrInvalidChallenge)
		}
	case scoring.EvaluationText, scoring.EvaluationNone:
	default:
		return fmt.Errorf("%w: unknown evaluation type %q", ErrInvalidChallenge, model.EvaluationType)
	}
	return nil
}
