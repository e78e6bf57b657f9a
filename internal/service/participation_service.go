package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
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
	// ErrAlreadySubmitted indicates the user already responded to the challenge.
	ErrAlreadySubmitted = errors.New("challenge already submitted")
	// ErrQRCodeMismatch indicates the scanned code does not belong to the challenge.
	ErrQRCodeMismatch = errors.New("qr code does not match challenge")
	// ErrSubmissionIncomplete indicates the response is missing data its evaluation type needs.
	ErrSubmissionIncomplete = errors.New("submission is incomplete")
	// ErrUnknownRequirement indicates evidence references a requirement the challenge does not have.
	ErrUnknownRequirement = errors.New("unknown requirement")
	// ErrEvidenceTooLarge indicates the upload exceeded the requirement's size limit.
	ErrEvidenceTooLarge = errors.New("evidence exceeds maximum allowed size")
	// ErrEvidenceTypeNotAllowed indicates the detected file category is not accepted.
	ErrEvidenceTypeNotAllowed = errors.New("evidence type not allowed")
	// ErrEvidenceNotFile indicates a link requirement received a file upload.
	ErrEvidenceNotFile = errors.New("requirement expects a link, not a file")
	// ErrStorageUnavailable indicates no evidence storage is configured.
	ErrStorageUnavailable = errors.New("evidence storage not configured")
)

// EvidenceStorage persists uploaded evidence and returns its public URL.
type EvidenceStorage interface {
	Store(ctx context.Context, folder, name string, body io.Reader) (string, error)
}

// ParticipationService handles user-facing challenge participation.
type ParticipationService interface {
	Submit(ctx context.Context, challengeID, userID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error)
	UploadEvidence(ctx context.Context, challengeID, userID uint, requirementID string, file *multipart.FileHeader) (scoring.Evidence, error)
	MySubmissions(ctx context.Context, userID uint, page, pageSize int) (dto.SubmissionListResponse, error)
}

type participationService struct {
	challenges  repository.ChallengeRepository
	submissions repository.ChallengeSubmissionRepository
	storage     EvidenceStorage
	events      scoring.EventSink
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	maxSize     int64
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewParticipationService constructs the participation service. storage and
// events may be nil.
func NewParticipationService(
	challenges repository.ChallengeRepository,
	submissions repository.ChallengeSubmissionRepository,
	storage EvidenceStorage,
	events scoring.EventSink,
	validate *validator.Validate,
	maxSizeMB int,
	logger zerolog.Logger,
) ParticipationService {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	return &participationService{
		challenges:  challenges,
		submissions: submissions,
		storage:     storage,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		logger:      logger.With().Str("component", "participation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/campus-engage-api/internal/service/participation"),
		now:         time.Now,
	}
}

func (s *participationService) Submit(ctx context.Context, challengeID, userID uint, payload dto.SubmissionCreateRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "participation.submit", trace.WithAttributes(
		attribute.Int("challenge.id", int(challengeID)),
		attribute.Int("user.id", int(userID)),
	))
	defer span.End()

	challenge, err := s.activeChallenge(ctx, challengeID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	exists, err := s.submissions.ExistsForUser(ctx, challengeID, userID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if exists {
		return dto.SubmissionResponse{}, ErrAlreadySubmitted
	}

	data, status, points, err := s.evaluate(challenge, payload)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	model := models.ChallengeSubmission{
		ChallengeID: challenge.ID,
		UserID:      userID,
		Status:      string(status),
		Points:      points,
		Version:     1,
	}
	if err := model.SetPayload(data); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if status == scoring.SubmissionCompleted {
		reviewedAt := s.now().UTC()
		model.ReviewedAt = &reviewedAt
	}

	if err := s.submissions.Create(ctx, &model); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		if isUniqueViolation(err) {
			return dto.SubmissionResponse{}, ErrAlreadySubmitted
		}
		return dto.SubmissionResponse{}, err
	}
	model.Challenge = challenge

	if status == scoring.SubmissionCompleted && s.events != nil {
		event := scoring.SubmissionUpdated{
			SubmissionID: model.ID,
			ChallengeID:  model.ChallengeID,
			UserID:       model.UserID,
			Status:       status,
			Points:       points,
			Version:      model.Version,
			OccurredAt:   s.now().UTC(),
		}
		if err := s.events.PublishSubmissionUpdated(ctx, event); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", model.ID).Msg("failed to publish submission event")
		}
	}

	s.logger.Info().
		Uint("submission_id", model.ID).
		Uint("challenge_id", challenge.ID).
		Str("status", model.Status).
		Int("points", model.Points).
		Msg("challenge submission stored")

	return dto.NewSubmissionResponse(model), nil
}

// evaluate builds the stored payload. Quiz, QR code and none challenges are
// scored immediately; text and file wait for a reviewer.
func (s *participationService) evaluate(challenge models.Challenge, payload dto.SubmissionCreateRequest) (scoring.Payload, scoring.SubmissionStatus, int, error) {
	switch scoring.EvaluationType(challenge.EvaluationType) {
	case scoring.EvaluationQuiz:
		if len(payload.Answers) == 0 {
			return nil, "", 0, fmt.Errorf("%w: answers are required", ErrSubmissionIncomplete)
		}
		points := scoreQuiz(challenge.QuizQuestions(), payload.Answers, challenge.Points)
		return scoring.QuizPayload{Answers: payload.Answers}, scoring.SubmissionCompleted, points, nil

	case scoring.EvaluationQRCode:
		code := strings.TrimSpace(payload.Code)
		if code == "" {
			return nil, "", 0, fmt.Errorf("%w: code is required", ErrSubmissionIncomplete)
		}
		if !strings.EqualFold(code, challenge.QRCode) {
			return nil, "", 0, ErrQRCodeMismatch
		}
		return scoring.QRCodePayload{Code: code}, scoring.SubmissionCompleted, challenge.Points, nil

	case scoring.EvaluationText:
		text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
		if text == "" {
			return nil, "", 0, fmt.Errorf("%w: text is required", ErrSubmissionIncomplete)
		}
		return scoring.TextPayload{Text: text}, scoring.SubmissionPending, 0, nil

	case scoring.EvaluationFile:
		files, err := collectEvidence(challenge.RequirementList(), payload.Files)
		if err != nil {
			return nil, "", 0, err
		}
		return scoring.FilePayload{Files: files}, scoring.SubmissionPending, 0, nil

	case scoring.EvaluationNone:
		return scoring.EmptyPayload{}, scoring.SubmissionCompleted, challenge.Points, nil
	}

	return nil, "", 0, fmt.Errorf("%w: %s", scoring.ErrUnknownSubmissionType, challenge.EvaluationType)
}

func scoreQuiz(questions []models.QuizQuestion, answers []scoring.QuizAnswer, points int) int {
	if len(questions) == 0 {
		return points
	}

	chosen := make(map[string]string, len(answers))
	for _, answer := range answers {
		if _, ok := chosen[answer.QuestionID]; !ok {
			chosen[answer.QuestionID] = answer.OptionID
		}
	}

	correct := 0
	for _, question := range questions {
		for _, option := range question.Options {
			if option.Correct && chosen[question.ID] == option.ID {
				correct++
				break
			}
		}
	}

	return points * correct / len(questions)
}

// collectEvidence accepts evidence for any subset of the requirements. Requirements
// left without evidence still get a review and are usually rejected by the reviewer.
func collectEvidence(requirements []scoring.Requirement, files []dto.EvidenceRequest) ([]scoring.Evidence, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: at least one file or link is required", ErrSubmissionIncomplete)
	}

	known := make(map[string]scoring.Requirement, len(requirements))
	for _, requirement := range requirements {
		known[requirement.ID] = requirement
	}

	evidence := make([]scoring.Evidence, 0, len(files))
	for _, file := range files {
		requirement, ok := known[file.RequirementID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRequirement, file.RequirementID)
		}
		if requirement.MaxSizeBytes > 0 && file.SizeBytes > requirement.MaxSizeBytes {
			return nil, fmt.Errorf("%w: %s", ErrEvidenceTooLarge, file.RequirementID)
		}
		evidence = append(evidence, scoring.Evidence{
			RequirementID: file.RequirementID,
			URL:           strings.TrimSpace(file.URL),
			FileName:      sanitizeFileName(file.FileName),
			MimeType:      file.MimeType,
			SizeBytes:     file.SizeBytes,
		})
	}

	return evidence, nil
}

func (s *participationService) UploadEvidence(ctx context.Context, challengeID, userID uint, requirementID string, file *multipart.FileHeader) (scoring.Evidence, error) {
	ctx, span := s.tracer.Start(ctx, "participation.upload_evidence", trace.WithAttributes(
		attribute.Int("challenge.id", int(challengeID)),
		attribute.String("requirement.id", requirementID),
	))
	defer span.End()

	if s.storage == nil {
		return scoring.Evidence{}, ErrStorageUnavailable
	}
	if file == nil {
		return scoring.Evidence{}, fmt.Errorf("%w: file is required", ErrSubmissionIncomplete)
	}

	challenge, err := s.activeChallenge(ctx, challengeID)
	if err != nil {
		return scoring.Evidence{}, err
	}

	var requirement scoring.Requirement
	found := false
	for _, item := range challenge.RequirementList() {
		if item.ID == requirementID {
			requirement, found = item, true
			break
		}
	}
	if !found {
		return scoring.Evidence{}, fmt.Errorf("%w: %s", ErrUnknownRequirement, requirementID)
	}
	if requirement.SubmissionKind == scoring.KindLink {
		return scoring.Evidence{}, ErrEvidenceNotFile
	}

	limit := s.maxSize
	if requirement.MaxSizeBytes > 0 && requirement.MaxSizeBytes < limit {
		limit = requirement.MaxSizeBytes
	}
	if file.Size > limit {
		observability.EvidenceUploads().WithLabelValues("unknown", "too_large").Inc()
		return scoring.Evidence{}, ErrEvidenceTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return scoring.Evidence{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, limit+1)); err != nil {
		span.RecordError(err)
		return scoring.Evidence{}, err
	}
	if int64(buf.Len()) > limit {
		observability.EvidenceUploads().WithLabelValues("unknown", "too_large").Inc()
		return scoring.Evidence{}, ErrEvidenceTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	category := categorizeMime(detected)
	span.SetAttributes(attribute.String("evidence.mime", detected.String()), attribute.String("evidence.category", category))
	if !categoryAccepted(requirement.AcceptedCategories, category) {
		observability.EvidenceUploads().WithLabelValues(category, "rejected").Inc()
		return scoring.Evidence{}, fmt.Errorf("%w: %s", ErrEvidenceTypeNotAllowed, category)
	}

	name := sanitizeFileName(file.Filename)
	folder := fmt.Sprintf("challenge-%d/user-%d", challenge.ID, userID)
	url, err := s.storage.Store(ctx, folder, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.EvidenceUploads().WithLabelValues(category, "storage_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return scoring.Evidence{}, err
	}

	observability.EvidenceUploads().WithLabelValues(category, "stored").Inc()

	return scoring.Evidence{
		RequirementID: requirement.ID,
		URL:           url,
		FileName:      name,
		MimeType:      strings.Split(detected.String(), ";")[0],
		SizeBytes:     int64(buf.Len()),
	}, nil
}

func (s *participationService) MySubmissions(ctx context.Context, userID uint, page, pageSize int) (dto.SubmissionListResponse, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	items, total, err := s.submissions.List(ctx, repository.ChallengeSubmissionFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   &userID,
	})
	if err != nil {
		return dto.SubmissionListResponse{}, err
	}

	return dto.SubmissionListResponse{
		Items:      dto.NewSubmissionResponseSlice(items),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *participationService) activeChallenge(ctx context.Context, id uint) (models.Challenge, error) {
	challenge, err := s.challenges.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, err
	}
	if !challenge.Active {
		return models.Challenge{}, ErrChallengeInactive
	}
	return challenge, nil
}

func categorizeMime(detected *mimetype.MIME) string {
	for m := detected; m != nil; m = m.Parent() {
		value := strings.Split(m.String(), ";")[0]
		switch {
		case strings.HasPrefix(value, "image/"):
			return "image"
		case strings.HasPrefix(value, "video/"):
			return "video"
		case strings.HasPrefix(value, "audio/"):
			return "audio"
		case value == "application/zip", value == "application/x-7z-compressed",
			value == "application/x-rar-compressed", value == "application/gzip", value == "application/x-tar":
			return "archive"
		case value == "application/pdf", value == "text/plain", value == "application/msword",
			value == "application/rtf", value == "text/rtf",
			strings.HasPrefix(value, "application/vnd.openxmlformats-officedocument"),
			strings.HasPrefix(value, "application/vnd.oasis.opendocument"),
			strings.HasPrefix(value, "application/vnd.ms-"):
			return "document"
		}
	}
	return "other"
}

func categoryAccepted(accepted []string, category string) bool {
	if len(accepted) == 0 {
		return category != "other"
	}
	for _, item := range accepted {
		if strings.EqualFold(strings.TrimSpace(item), category) {
			return true
		}
	}
	return false
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, name)
	if len(name) > 255 {
		name = name[:255]
	}
	if name == "" {
		return "evidence"
	}
	return name
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
