package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/pkg/ai"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

// ErrAssistantUnavailable indicates no AI provider is configured.
var ErrAssistantUnavailable = errors.New("feedback assistant not configured")

const maxSubmissionExcerpt = 4000

// FeedbackAssistantService drafts overall feedback for a submission under review.
type FeedbackAssistantService interface {
	Suggest(ctx context.Context, submissionID uint, draft string) (dto.FeedbackSuggestionResponse, error)
}

type feedbackAssistantService struct {
	reviews   SubmissionReviewService
	assistant ai.FeedbackAssistant
	logger    zerolog.Logger
}

// NewFeedbackAssistantService constructs the service. assistant may be nil.
func NewFeedbackAssistantService(reviews SubmissionReviewService, assistant ai.FeedbackAssistant, logger zerolog.Logger) FeedbackAssistantService {
	return &feedbackAssistantService{
		reviews:   reviews,
		assistant: assistant,
		logger:    logger.With().Str("component", "feedback_assistant_service").Logger(),
	}
}

func (s *feedbackAssistantService) Suggest(ctx context.Context, submissionID uint, draft string) (dto.FeedbackSuggestionResponse, error) {
	if s.assistant == nil {
		return dto.FeedbackSuggestionResponse{}, ErrAssistantUnavailable
	}

	challenge, submission, err := s.reviews.Open(ctx, submissionID)
	if err != nil {
		return dto.FeedbackSuggestionResponse{}, err
	}

	reviews := scoring.InitializeSession(challenge.Requirements, scoring.PriorReviews(submission.Data))
	totals := scoring.ComputeTotals(challenge.Requirements, reviews)

	input := ai.FeedbackInput{
		ChallengeTitle: challenge.Title,
		EvaluationType: string(challenge.EvaluationType),
		Submission:     submissionExcerpt(submission.Data),
		EarnedPoints:   totals.EarnedPoints,
		PossiblePoints: totals.PossiblePoints,
		DraftFeedback:  strings.TrimSpace(draft),
	}
	for _, requirement := range challenge.Requirements {
		note := ai.RequirementNote{Name: requirement.Name, Points: requirement.Points, Status: string(scoring.ReviewPending)}
		if review, ok := reviews.Lookup(requirement.ID); ok {
			note.Status = string(review.Status)
			note.Feedback = review.Feedback
		}
		input.Requirements = append(input.Requirements, note)
	}

	suggestion, err := s.assistant.SuggestFeedback(ctx, input)
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("feedback suggestion failed")
		return dto.FeedbackSuggestionResponse{}, err
	}

	return dto.FeedbackSuggestionResponse{Suggestion: suggestion.Feedback, Model: suggestion.Model}, nil
}

func submissionExcerpt(payload scoring.Payload) string {
	switch p := payload.(type) {
	case scoring.TextPayload:
		if len(p.Text) > maxSubmissionExcerpt {
			return p.Text[:maxSubmissionExcerpt]
		}
		return p.Text
	case scoring.FilePayload:
		names := make([]string, 0, len(p.Files))
		for _, file := range p.Files {
			name := file.FileName
			if name == "" {
				name = file.URL
			}
			names = append(names, file.RequirementID+": "+name)
		}
		return strings.Join(names, "\n")
	}
	return ""
}
