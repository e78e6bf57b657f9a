package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/campus-engage-api/internal/dto"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

type reviewPersister struct {
	reviews SubmissionReviewService
	actor   ActivityActor
}

// NewReviewPersister runs scoring sessions against the review service in
// process. The review service publishes submission events itself, so reviewers
// built on this persister should not be given the same event sink.
func NewReviewPersister(reviews SubmissionReviewService, actor ActivityActor) scoring.Persister {
	return &reviewPersister{reviews: reviews, actor: actor}
}

func (p *reviewPersister) SaveReview(ctx context.Context, submissionID uint, request scoring.ReviewRequest) (scoring.PersistResult, error) {
	payload := dto.GranularReviewRequest{
		AdminFeedback: request.AdminFeedback,
		Version:       request.Version,
	}
	for _, review := range request.RequirementReviews {
		payload.RequirementReviews = append(payload.RequirementReviews, dto.RequirementReviewRequest{
			RequirementID: review.RequirementID,
			Status:        string(review.Status),
			Feedback:      review.Feedback,
		})
	}

	result, err := p.reviews.ReviewGranular(ctx, submissionID, payload, p.actor)
	if err != nil {
		return scoring.PersistResult{}, classifyReviewError(err)
	}

	submission := result.Submission
	persisted := scoring.PersistResult{
		SubmissionID:  submission.ID,
		Status:        scoring.SubmissionStatus(submission.Status),
		Points:        submission.Points,
		AdminFeedback: submission.AdminFeedback,
		Version:       submission.Version,
	}
	if data, err := scoring.DecodePayload(submission.SubmissionData); err == nil {
		persisted.RequirementReviews = scoring.PriorReviews(data)
	}

	return persisted, nil
}

// classifyReviewError marks refusals that a resend of the same review cannot fix.
func classifyReviewError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) || errors.Is(err, ErrReviewNotStorable) || errors.Is(err, ErrSubmissionNotFound) {
		return fmt.Errorf("%w: %w", scoring.ErrInvalidReview, err)
	}
	return err
}
