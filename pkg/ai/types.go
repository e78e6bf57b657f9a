package ai

import "context"

// RequirementNote is one reviewed requirement handed to the assistant.
type RequirementNote struct {
	Name     string
	Points   int
	Status   string
	Feedback string
}

// FeedbackInput contains what a reviewer has decided so far.
type FeedbackInput struct {
	ChallengeTitle string
	Description    string
	EvaluationType string
	Submission     string
	Requirements   []RequirementNote
	EarnedPoints   int
	PossiblePoints int
	DraftFeedback  string
}

// FeedbackSuggestion is a drafted overall feedback text.
type FeedbackSuggestion struct {
	Feedback string `json:"feedback"`
	Model    string `json:"model"`
}

// FeedbackAssistant drafts submission-level feedback for reviewers.
type FeedbackAssistant interface {
	SuggestFeedback(ctx context.Context, input FeedbackInput) (FeedbackSuggestion, error)
}
