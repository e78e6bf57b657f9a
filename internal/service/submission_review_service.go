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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/models"
	"github.com/noah-isme/campus-engage-api/internal/observability"
	"github.com/noah-isme/campus-engage-api/internal/repository"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

var (
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrReviewNotStorable indicates a granular review of a submission whose payload
	// cannot hold requirement reviews.
	ErrReviewNotStorable = errors.New("submission cannot store requirement reviews")
	// ErrPointsExceedMax indicates a holistic decision awarded more than the challenge allows.
	ErrPointsExceedMax = errors.New("points exceed challenge maximum")
	// ErrGranularReviewRequired indicates a holistic decision on a challenge scored per requirement.
	ErrGranularReviewRequired = errors.New("challenge is reviewed per requirement")
)

// SubmissionReviewService lets administrators inspect and score submissions.
type SubmissionReviewService interface {
	List(ctx context.Context, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error)
	Get(ctx context.Context, id uint) (dto.ReviewDetailResponse, error)
	Open(ctx context.Context, id uint) (scoring.Challenge, scoring.Submission, error)
	ReviewGranular(ctx context.Context, id uint, payload dto.GranularReviewRequest, actor ActivityActor) (dto.ReviewResultResponse, error)
	ReviewDecision(ctx context.Context, id uint, payload dto.DecisionRequest, actor ActivityActor) (dto.ReviewResultResponse, error)
}

type submissionReviewService struct {
	repo      repository.ChallengeSubmissionRepository
	validator *validator.Validate
	activity  ActivityRecorder
	events    scoring.EventSink
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewSubmissionReviewService constructs the review service. events may be nil.
func NewSubmissionReviewService(repo repository.ChallengeSubmissionRepository, validate *validator.Validate, activity ActivityRecorder, events scoring.EventSink, logger zerolog.Logger) SubmissionReviewService {
	return &submissionReviewService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		events:    events,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "submission_review_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/campus-engage-api/internal/service/submission_review"),
		now:       time.Now,
	}
}

func (s *submissionReviewService) List(ctx context.Context, req dto.SubmissionListRequest) (dto.SubmissionListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionListResponse{}, err
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	filter := repository.ChallengeSubmissionFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Status:   req.Status,
	}
	if req.ChallengeID > 0 {
		filter.ChallengeID = &req.ChallengeID
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	return dto.SubmissionListResponse{
		Items:      dto.NewSubmissionResponseSlice(items),
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *submissionReviewService) Get(ctx context.Context, id uint) (dto.ReviewDetailResponse, error) {
	model, err := s.load(ctx, id)
	if err != nil {
		return dto.ReviewDetailResponse{}, err
	}

	payload, err := model.Payload()
	if err != nil {
		return dto.ReviewDetailResponse{}, err
	}

	requirements := model.Challenge.RequirementList()
	if requirements == nil {
		requirements = []scoring.Requirement{}
	}
	reviews := scoring.InitializeSession(requirements, scoring.PriorReviews(payload))

	return dto.ReviewDetailResponse{
		Submission:         dto.NewSubmissionResponse(model),
		Requirements:       requirements,
		RequirementReviews: reviews.Items(),
		Totals:             scoring.ComputeTotals(requirements, reviews),
	}, nil
}

func (s *submissionReviewService) Open(ctx context.Context, id uint) (scoring.Challenge, scoring.Submission, error) {
	model, err := s.load(ctx, id)
	if err != nil {
		return scoring.Challenge{}, scoring.Submission{}, err
	}

	submission, err := model.ScoringView()
	if err != nil {
		return scoring.Challenge{}, scoring.Submission{}, err
	}

	return model.Challenge.ScoringView(), submission, nil
}

func (s *submissionReviewService) ReviewGranular(ctx context.Context, id uint, payload dto.GranularReviewRequest, actor ActivityActor) (dto.ReviewResultResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReviewResultResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "submission_review.granular", trace.WithAttributes(
		attribute.Int("submission.id", int(id)),
		attribute.Int("submission.version", payload.Version),
	))
	defer span.End()
	start := time.Now()

	model, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.ReviewResultResponse{}, err
	}

	stored, err := model.Payload()
	if err != nil {
		span.RecordError(err)
		return dto.ReviewResultResponse{}, err
	}

	requirements := model.Challenge.RequirementList()
	submitted := payload.ScoringReviews()
	for i := range submitted {
		submitted[i].Feedback = s.clean(submitted[i].Feedback)
	}
	reviews := scoring.InitializeSession(requirements, submitted)

	if status, points, ok := scoring.DeriveOutcome(requirements, reviews); ok {
		// Status and points are only written together with the reviews they derive from.
		withReviews, err := scoring.WithReviews(stored, reviews.Items())
		if err != nil {
			span.RecordError(err)
			return dto.ReviewResultResponse{}, fmt.Errorf("%w: %w", ErrReviewNotStorable, err)
		}
		if err := model.SetPayload(withReviews); err != nil {
			return dto.ReviewResultResponse{}, err
		}
		model.Status = string(status)
		model.Points = points
	}
	model.AdminFeedback = s.clean(payload.AdminFeedback)

	if err := s.persist(ctx, &model, payload.Version, actor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.ReviewResultResponse{}, err
	}

	totals := scoring.ComputeTotals(requirements, reviews)
	s.afterSave(ctx, model, "granular", actor, map[string]interface{}{
		"status":         model.Status,
		"points":         model.Points,
		"approved_count": totals.ApprovedCount,
		"rejected_count": totals.RejectedCount,
		"pending_count":  totals.PendingCount,
		"version":        model.Version,
	}, start)

	return dto.ReviewResultResponse{
		Submission: dto.NewSubmissionResponse(model),
		Totals:     totals,
	}, nil
}

func (s *submissionReviewService) ReviewDecision(ctx context.Context, id uint, payload dto.DecisionRequest, actor ActivityActor) (dto.ReviewResultResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReviewResultResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "submission_review.decision", trace.WithAttributes(
		attribute.Int("submission.id", int(id)),
		attribute.String("submission.status", payload.Status),
	))
	defer span.End()
	start := time.Now()

	model, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.ReviewResultResponse{}, err
	}
	if len(model.Challenge.RequirementList()) > 0 {
		return dto.ReviewResultResponse{}, ErrGranularReviewRequired
	}

	maxPoints := model.Challenge.MaxPoints()
	points := 0
	if payload.Status == string(scoring.SubmissionApproved) {
		points = maxPoints
		if payload.Points != nil {
			points = *payload.Points
		}
		if points > maxPoints {
			return dto.ReviewResultResponse{}, fmt.Errorf("%w: %d > %d", ErrPointsExceedMax, points, maxPoints)
		}
	}

	model.Status = payload.Status
	model.Points = points
	model.AdminFeedback = s.clean(payload.AdminFeedback)

	if err := s.persist(ctx, &model, payload.Version, actor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.ReviewResultResponse{}, err
	}

	s.afterSave(ctx, model, "decision", actor, map[string]interface{}{
		"status":  model.Status,
		"points":  model.Points,
		"version": model.Version,
	}, start)

	return dto.ReviewResultResponse{
		Submission: dto.NewSubmissionResponse(model),
		Totals: scoring.Totals{
			EarnedPoints:   model.Points,
			PossiblePoints: maxPoints,
		},
	}, nil
}

func (s *submissionReviewService) persist(ctx context.Context, model *models.ChallengeSubmission, version int, actor ActivityActor) error {
	reviewedAt := s.now().UTC()
	model.ReviewedAt = &reviewedAt
	if actor.ID > 0 {
		model.ReviewedBy = uintPtr(actor.ID)
	}

	if err := s.repo.UpdateReview(ctx, model, version); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleVersion):
			return fmt.Errorf("%w: submission %d", scoring.ErrVersionConflict, model.ID)
		case isNotFound(err):
			return ErrSubmissionNotFound
		}
		return err
	}
	return nil
}

func (s *submissionReviewService) afterSave(ctx context.Context, model models.ChallengeSubmission, mode string, actor ActivityActor, metadata map[string]interface{}, start time.Time) {
	observability.ReviewSaves().WithLabelValues(mode, model.Status).Inc()
	observability.ReviewSaveDuration().Observe(time.Since(start).Seconds())

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "submission.reviewed",
		EntityType: "challenge_submission",
		EntityID:   uintPtr(model.ID),
		Metadata:   metadata,
	})

	if s.events != nil {
		event := scoring.SubmissionUpdated{
			SubmissionID: model.ID,
			ChallengeID:  model.ChallengeID,
			UserID:       model.UserID,
			Status:       scoring.SubmissionStatus(model.Status),
			Points:       model.Points,
			Version:      model.Version,
			OccurredAt:   s.now().UTC(),
		}
		if err := s.events.PublishSubmissionUpdated(ctx, event); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", model.ID).Msg("failed to publish submission event")
		}
	}

	s.logger.Info().
		Uint("submission_id", model.ID).
		Str("mode", mode).
		Str("status", model.Status).
		Int("points", model.Points).
		Int("version", model.Version).
		Msg("submission review stored")
}

func (s *submissionReviewService) load(ctx context.Context, id uint) (models.ChallengeSubmission, error) {
	model, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return models.ChallengeSubmission{}, ErrSubmissionNotFound
		}
		return models.ChallengeSubmission{}, err
	}
	return model, nil
}

func (s *submissionReviewService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
