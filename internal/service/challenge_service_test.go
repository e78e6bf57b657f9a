package service

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/internal/repository"
)

func setupChallengeService(t *testing.T) (*gorm.DB, ChallengeService, *stubActivityRecorder) {
	t.Helper()

	db := setupGamificationDB(t, "challenge")
	activity := &stubActivityRecorder{}
	svc := NewChallengeService(repository.NewChallengeRepository(db), validator.New(validator.WithRequiredStructEnabled()), activity, zerolog.Nop())
	return db, svc, activity
}

func fileChallengeRequest() dto.ChallengeCreateRequest {
	return dto.ChallengeCreateRequest{
		Title:          "  Green campus  ",
		Description:    "<p>Plant a tree</p><script>alert(1)</script>",
		EvaluationType: "file",
		Requirements: []dto.RequirementRequest{
			{ID: "photo", Name: "Photo", Points: 10, SubmissionKind: "file", AcceptedCategories: []string{"image"}, MaxSize: 2048},
			{ID: "link", Name: "Blog post", Points: 5, SubmissionKind: "link"},
		},
	}
}

func TestChallengeCreateFile(t *testing.T) {
	_, svc, activity := setupChallengeService(t)

	response, err := svc.Create(context.Background(), fileChallengeRequest(), ActivityActor{ID: 1, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, "Green campus", response.Title)
	require.Equal(t, "<p>Plant a tree</p>", response.Description)
	require.Equal(t, 15, response.MaxPoints)
	require.Len(t, response.Requirements, 2)
	require.Equal(t, int64(2048), response.Requirements[0].MaxSizeBytes)
	require.True(t, response.Active)
	require.Equal(t, []string{"challenge.created"}, activity.actions())
}

func TestChallengeCreateRejectsInvalidDefinitions(t *testing.T) {
	_, svc, _ := setupChallengeService(t)

	duplicate := fileChallengeRequest()
	duplicate.Requirements[1].ID = "photo"
	_, err := svc.Create(context.Background(), duplicate, ActivityActor{})
	require.ErrorIs(t, err, ErrInvalidChallenge)

	_, err = svc.Create(context.Background(), dto.ChallengeCreateRequest{Title: "Scan it", EvaluationType: "qrcode", Points: 5}, ActivityActor{})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	_, err = svc.Create(context.Background(), dto.ChallengeCreateRequest{
		Title:          "Quiz",
		EvaluationType: "quiz",
		Points:         10,
		Quiz: []dto.QuizQuestionRequest{{
			ID:      "q1",
			Prompt:  "Pick",
			Options: []dto.QuizOptionRequest{{ID: "a", Text: "A", Correct: true}, {ID: "b", Text: "B", Correct: true}},
		}},
	}, ActivityActor{})
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestChallengePublicViewHidesAnswers(t *testing.T) {
	_, svc, _ := setupChallengeService(t)

	created, err := svc.Create(context.Background(), dto.ChallengeCreateRequest{
		Title:          "Campus quiz",
		EvaluationType: "quiz",
		Points:         10,
		Quiz: []dto.QuizQuestionRequest{{
			ID:      "q1",
			Prompt:  "Library floor?",
			Options: []dto.QuizOptionRequest{{ID: "a", Text: "1"}, {ID: "b", Text: "2", Correct: true}},
		}},
	}, ActivityActor{})
	require.NoError(t, err)
	require.NotNil(t, created.Quiz[0].Options[1].Correct)

	public, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	for _, option := range public.Quiz[0].Options {
		require.Nil(t, option.Correct)
	}

	qr, err := svc.Create(context.Background(), dto.ChallengeCreateRequest{Title: "Scan it", EvaluationType: "qrcode", Points: 5, QRCode: "LIB-2F"}, ActivityActor{})
	require.NoError(t, err)
	require.Equal(t, "LIB-2F", qr.QRCode)
	publicQR, err := svc.Get(context.Background(), qr.ID)
	require.NoError(t, err)
	require.Empty(t, publicQR.QRCode)
}

func TestChallengeUpdateAndVisibility(t *testing.T) {
	_, svc, activity := setupChallengeService(t)

	created, err := svc.Create(context.Background(), fileChallengeRequest(), ActivityActor{ID: 1, Role: "admin"})
	require.NoError(t, err)

	inactive := false
	title := "Greener campus"
	updated, err := svc.Update(context.Background(), created.ID, dto.ChallengeUpdateRequest{Title: &title, Active: &inactive}, ActivityActor{ID: 1, Role: "admin"})
	require.NoError(t, err)
	require.Equal(t, "Greener campus", updated.Title)
	require.False(t, updated.Active)

	_, err = svc.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, ErrChallengeNotFound)

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := svc.AdminList(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = svc.Update(context.Background(), 999, dto.ChallengeUpdateRequest{Title: &title}, ActivityActor{})
	require.ErrorIs(t, err, ErrChallengeNotFound)

	require.Equal(t, "challenge.created,challenge.updated", strings.Join(activity.actions(), ","))
}

func TestChallengeRequirementsOnlyOnFileChallenges(t *testing.T) {
	_, svc, _ := setupChallengeService(t)

	_, err := svc.Create(context.Background(), dto.ChallengeCreateRequest{
		Title:          "Essay",
		EvaluationType: "text",
		Points:         10,
		Requirements: []dto.RequirementRequest{
			{ID: "r1", Name: "Intro", Points: 10, SubmissionKind: "file"},
		},
	}, ActivityActor{})
	require.ErrorIs(t, err, ErrInvalidChallenge)

	essay, err := svc.Create(context.Background(), dto.ChallengeCreateRequest{Title: "Essay", EvaluationType: "text", Points: 10}, ActivityActor{})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), essay.ID, dto.ChallengeUpdateRequest{
		Requirements: []dto.RequirementRequest{{ID: "r1", Name: "Intro", Points: 10, SubmissionKind: "file"}},
	}, ActivityActor{})
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestChallengeRejectsBlankRequirementID(t *testing.T) {
	_, svc, _ := setupChallengeService(t)

	blank := fileChallengeRequest()
	blank.Requirements[0].ID = "   "
	_, err := svc.Create(context.Background(), blank, ActivityActor{})
	require.ErrorIs(t, err, ErrInvalidChallenge)
}
