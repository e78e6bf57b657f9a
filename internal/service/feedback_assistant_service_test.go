package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-engage-api/internal/repository"
	"github.com/noah-isme/campus-engage-api/pkg/ai"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

type stubAssistant struct {
	input ai.FeedbackInput
}

func (s *stubAssistant) SuggestFeedback(_ context.Context, input ai.FeedbackInput) (ai.FeedbackSuggestion, error) {
	s.input = input
	return ai.FeedbackSuggestion{Feedback: "Great poster. Please redo the report.", Model: "stub"}, nil
}

func TestFeedbackAssistantBuildsInputFromPriorReviews(t *testing.T) {
	db := setupGamificationDB(t, "feedback_assistant")
	reviews := NewSubmissionReviewService(repository.NewChallengeSubmissionRepository(db), validator.New(), nil, nil, zerolog.Nop())
	assistant := &stubAssistant{}
	svc := NewFeedbackAssistantService(reviews, assistant, zerolog.Nop())

	challenge := seedFileChallenge(t, db)
	submission := seedSubmission(t, db, challenge, 7, scoring.FilePayload{
		Files: []scoring.Evidence{{RequirementID: "poster", FileName: "poster.png"}},
		RequirementReviews: []scoring.RequirementReview{
			{RequirementID: "poster", Status: scoring.ReviewApproved},
			{RequirementID: "report", Status: scoring.ReviewRejected, Feedback: "missing photos"},
		},
	})

	response, err := svc.Suggest(context.Background(), submission.ID, "  draft  ")
	require.NoError(t, err)
	require.Equal(t, "Great poster. Please redo the report.", response.Suggestion)
	require.Equal(t, "stub", response.Model)

	require.Equal(t, "Campus cleanup", assistant.input.ChallengeTitle)
	require.Equal(t, "draft", assistant.input.DraftFeedback)
	require.Equal(t, 10, assistant.input.EarnedPoints)
	require.Equal(t, 35, assistant.input.PossiblePoints)
	require.Equal(t, "poster: poster.png", assistant.input.Submission)
	require.Len(t, assistant.input.Requirements, 3)
	require.Equal(t, "rejected", assistant.input.Requirements[1].Status)
	require.Equal(t, "pending", assistant.input.Requirements[2].Status)
}

func TestFeedbackAssistantUnavailable(t *testing.T) {
	svc := NewFeedbackAssistantService(nil, nil, zerolog.Nop())

	_, err := svc.Suggest(context.Background(), 1, "")
	require.ErrorIs(t, err, ErrAssistantUnavailable)
}
