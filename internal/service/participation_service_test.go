package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/repository"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

func setupParticipationService(t *testing.T, storage EvidenceStorage) (*gorm.DB, ParticipationService, *recordingEventSink) {
	t.Helper()

	db := setupGamificationDB(t, "participation")
	events := &recordingEventSink{}
	svc := NewParticipationService(
		repository.NewChallengeRepository(db),
		repository.NewChallengeSubmissionRepository(db),
		storage,
		events,
		validator.New(validator.WithRequiredStructEnabled()),
		1,
		zerolog.Nop(),
	)
	return db, svc, events
}

func TestSubmitQuizScoresCorrectAnswers(t *testing.T) {
	db, svc, events := setupParticipationService(t, nil)
	challenge := seedChallenge(t, db, scoring.EvaluationQuiz, 40)

	response, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{
		Answers: []scoring.QuizAnswer{
			{QuestionID: "q1", OptionID: "b"},
			{QuestionID: "q2", OptionID: "a"},
			{QuestionID: "q3", OptionID: "b"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "completed", response.Status)
	require.Equal(t, 20, response.Points)
	require.Equal(t, "quiz", response.SubmissionType)
	require.NotNil(t, response.ReviewedAt)

	published := events.published()
	require.Len(t, published, 1)
	require.Equal(t, 20, published[0].Points)
}

func TestSubmitRejectsDuplicates(t *testing.T) {
	db, svc, _ := setupParticipationService(t, nil)
	challenge := seedChallenge(t, db, scoring.EvaluationNone, 5)

	response, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{})
	require.NoError(t, err)
	require.Equal(t, "completed", response.Status)
	require.Equal(t, 5, response.Points)

	_, err = svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{})
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmitQRCode(t *testing.T) {
	db, svc, _ := setupParticipationService(t, nil)
	challenge := seedChallenge(t, db, scoring.EvaluationQRCode, 25)

	_, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{Code: "WRONG"})
	require.ErrorIs(t, err, ErrQRCodeMismatch)

	response, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{Code: " lib-2f "})
	require.NoError(t, err)
	require.Equal(t, 25, response.Points)
}

func TestSubmitTextStartsPending(t *testing.T) {
	db, svc, events := setupParticipationService(t, nil)
	challenge := seedChallenge(t, db, scoring.EvaluationText, 15)

	_, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{Text: "<script>x</script>"})
	require.ErrorIs(t, err, ErrSubmissionIncomplete)

	response, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{Text: "I volunteered at the library"})
	require.NoError(t, err)
	require.Equal(t, "pending", response.Status)
	require.Equal(t, 0, response.Points)
	require.Empty(t, events.published())
}

func TestSubmitFileAcceptsPartialEvidence(t *testing.T) {
	db, svc, _ := setupParticipationService(t, nil)
	challenge := seedFileChallenge(t, db)

	_, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{})
	require.ErrorIs(t, err, ErrSubmissionIncomplete)

	_, err = svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{
		Files: []dto.EvidenceRequest{{RequirementID: "ghost", URL: "https://cdn.test/p.png"}},
	})
	require.ErrorIs(t, err, ErrUnknownRequirement)

	response, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{
		Files: []dto.EvidenceRequest{{RequirementID: "poster", URL: "https://cdn.test/p.png", FileName: "p.png", SizeBytes: 512}},
	})
	require.NoError(t, err)
	require.Equal(t, "pending", response.Status)
	require.Equal(t, "file", response.SubmissionType)

	reviews := NewSubmissionReviewService(
		repository.NewChallengeSubmissionRepository(db),
		validator.New(validator.WithRequiredStructEnabled()),
		&stubActivityRecorder{},
		&recordingEventSink{},
		zerolog.Nop(),
	)
	detail, err := reviews.Get(context.Background(), response.ID)
	require.NoError(t, err)
	require.Len(t, detail.RequirementReviews, 3)
	require.Equal(t, 3, detail.Totals.PendingCount)

	result, err := reviews.ReviewGranular(context.Background(), response.ID, dto.GranularReviewRequest{
		RequirementReviews: []dto.RequirementReviewRequest{
			{RequirementID: "poster", Status: "approved"},
			{RequirementID: "report", Status: "rejected", Feedback: "no report uploaded"},
			{RequirementID: "video", Status: "rejected", Feedback: "no link"},
		},
	}, ActivityActor{ID: 1, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, "approved", result.Submission.Status)
	require.Equal(t, 10, result.Submission.Points)
}

func TestSubmitInactiveChallenge(t *testing.T) {
	db, svc, _ := setupParticipationService(t, nil)
	challenge := seedChallenge(t, db, scoring.EvaluationNone, 5)
	require.NoError(t, db.Model(&challenge).Update("active", false).Error)

	_, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{})
	require.ErrorIs(t, err, ErrChallengeInactive)

	_, err = svc.Submit(context.Background(), 999, 9, dto.SubmissionCreateRequest{})
	require.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestUploadEvidenceStoresAcceptedFile(t *testing.T) {
	storage := &memoryEvidenceStorage{}
	db, svc, _ := setupParticipationService(t, storage)
	challenge := seedFileChallenge(t, db)

	evidence, err := svc.UploadEvidence(context.Background(), challenge.ID, 9, "report", multipartFile(t, "../final report.pdf", pdfBytes))
	require.NoError(t, err)
	require.Equal(t, "report", evidence.RequirementID)
	require.Equal(t, "application/pdf", evidence.MimeType)
	require.Equal(t, "final report.pdf", evidence.FileName)
	require.Equal(t, int64(len(pdfBytes)), evidence.SizeBytes)
	require.Contains(t, evidence.URL, "challenge-")
	require.Equal(t, pdfBytes, storage.body)
}

func TestUploadEvidenceRejections(t *testing.T) {
	db, svc, _ := setupParticipationService(t, &memoryEvidenceStorage{})
	challenge := seedFileChallenge(t, db)

	_, err := svc.UploadEvidence(context.Background(), challenge.ID, 9, "poster", multipartFile(t, "poster.pdf", pdfBytes))
	require.ErrorIs(t, err, ErrEvidenceTypeNotAllowed)

	large := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
	_, err = svc.UploadEvidence(context.Background(), challenge.ID, 9, "poster", multipartFile(t, "poster.png", large))
	require.ErrorIs(t, err, ErrEvidenceTooLarge)

	_, err = svc.UploadEvidence(context.Background(), challenge.ID, 9, "video", multipartFile(t, "clip.png", pngBytes))
	require.ErrorIs(t, err, ErrEvidenceNotFile)

	_, err = svc.UploadEvidence(context.Background(), challenge.ID, 9, "ghost", multipartFile(t, "clip.png", pngBytes))
	require.ErrorIs(t, err, ErrUnknownRequirement)

	evidence, err := svc.UploadEvidence(context.Background(), challenge.ID, 9, "poster", multipartFile(t, "poster.png", pngBytes))
	require.NoError(t, err)
	require.Equal(t, "image/png", evidence.MimeType)
}

func TestUploadEvidenceStorageFailures(t *testing.T) {
	db, svc, _ := setupParticipationService(t, nil)
	challenge := seedFileChallenge(t, db)

	_, err := svc.UploadEvidence(context.Background(), challenge.ID, 9, "poster", multipartFile(t, "poster.png", pngBytes))
	require.ErrorIs(t, err, ErrStorageUnavailable)

	db, svc, _ = setupParticipationService(t, &memoryEvidenceStorage{err: errors.New("cdn down")})
	challenge = seedFileChallenge(t, db)
	_, err = svc.UploadEvidence(context.Background(), challenge.ID, 9, "poster", multipartFile(t, "poster.png", pngBytes))
	require.EqualError(t, err, "cdn down")
}

func TestMySubmissionsListsOnlyCaller(t *testing.T) {
	db, svc, _ := setupParticipationService(t, nil)
	challenge := seedChallenge(t, db, scoring.EvaluationNone, 5)
	other := seedChallenge(t, db, scoring.EvaluationNone, 5)

	_, err := svc.Submit(context.Background(), challenge.ID, 9, dto.SubmissionCreateRequest{})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), other.ID, 9, dto.SubmissionCreateRequest{})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), challenge.ID, 10, dto.SubmissionCreateRequest{})
	require.NoError(t, err)

	list, err := svc.MySubmissions(context.Background(), 9, 1, 10)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	for _, item := range list.Items {
		require.Equal(t, uint(9), item.UserID)
		require.NotNil(t, item.Challenge)
	}
}
