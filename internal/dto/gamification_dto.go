package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/campus-engage-api/internal/models"
	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

// RequirementRequest describes one requirement of a file challenge.
type RequirementRequest struct {
	ID                 string   `json:"id" yaml:"id" validate:"required,max=64"`
	Name               string   `json:"name" yaml:"name" validate:"required,min=2,max=255"`
	Description        string   `json:"description" yaml:"description" validate:"omitempty,max=2000"`
	Points             int      `json:"points" yaml:"points" validate:"gte=0"`
	SubmissionKind     string   `json:"submissionKind" yaml:"submissionKind" validate:"required,oneof=file link"`
	AcceptedCategories []string `json:"acceptedCategories" yaml:"acceptedCategories" validate:"omitempty,dive,oneof=image document archive video audio"`
	MaxSize            int64    `json:"maxSize" yaml:"maxSize" validate:"gte=0"`
}

// QuizOptionRequest describes one quiz option.
type QuizOptionRequest struct {
	ID      string `json:"id" yaml:"id" validate:"required,max=64"`
	Text    string `json:"text" yaml:"text" validate:"required"`
	Correct bool   `json:"correct" yaml:"correct"`
}

// QuizQuestionRequest describes one quiz question.
type QuizQuestionRequest struct {
	ID      string              `json:"id" yaml:"id" validate:"required,max=64"`
	Prompt  string              `json:"prompt" yaml:"prompt" validate:"required"`
	Options []QuizOptionRequest `json:"options" yaml:"options" validate:"min=2,dive"`
}

// ChallengeCreateRequest captures a new challenge definition.
type ChallengeCreateRequest struct {
	Title          string                `json:"title" yaml:"title" validate:"required,min=3,max=255"`
	Description    string                `json:"description" yaml:"description" validate:"omitempty,max=5000"`
	EvaluationType string                `json:"evaluationType" yaml:"evaluationType" validate:"required,oneof=quiz text file qrcode none"`
	Points         int                   `json:"points" yaml:"points" validate:"gte=0"`
	QRCode         string                `json:"qrCode" yaml:"qrCode" validate:"required_if=EvaluationType qrcode,omitempty,max=128"`
	Quiz           []QuizQuestionRequest `json:"quiz" yaml:"quiz" validate:"required_if=EvaluationType quiz,omitempty,dive"`
	Requirements   []RequirementRequest  `json:"requirements" yaml:"requirements" validate:"required_if=EvaluationType file,omitempty,dive"`
	Active         *bool                 `json:"active" yaml:"active"`
}

// ChallengeUpdateRequest patches a challenge. The evaluation type is fixed
// once submissions may exist.
type ChallengeUpdateRequest struct {
	Title        *string               `json:"title" validate:"omitempty,min=3,max=255"`
	Description  *string               `json:"description" validate:"omitempty,max=5000"`
	Points       *int                  `json:"points" validate:"omitempty,gte=0"`
	QRCode       *string               `json:"qrCode" validate:"omitempty,max=128"`
	Quiz         []QuizQuestionRequest `json:"quiz" validate:"omitempty,dive"`
	Requirements []RequirementRequest  `json:"requirements" validate:"omitempty,dive"`
	Active       *bool                 `json:"active"`
}

// QuizOptionResponse hides the correct flag from participants.
type QuizOptionResponse struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct *bool  `json:"correct,omitempty"`
}

// QuizQuestionResponse serializes a quiz question.
type QuizQuestionResponse struct {
	ID      string               `json:"id"`
	Prompt  string               `json:"prompt"`
	Options []QuizOptionResponse `json:"options"`
}

// ChallengeResponse serializes a challenge definition.
type ChallengeResponse struct {
	ID             uint                   `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	EvaluationType string                 `json:"evaluationType"`
	Points         int                    `json:"points"`
	MaxPoints      int                    `json:"maxPoints"`
	Requirements   []scoring.Requirement  `json:"requirements"`
	Quiz           []QuizQuestionResponse `json:"quiz,omitempty"`
	QRCode         string                 `json:"qrCode,omitempty"`
	Active         bool                   `json:"active"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// NewChallengeResponse converts a challenge for participants.
func NewChallengeResponse(model models.Challenge) ChallengeResponse {
	return buildChallengeResponse(model, false)
}

// NewAdminChallengeResponse converts a challenge including answer keys.
func NewAdminChallengeResponse(model models.Challenge) ChallengeResponse {
	return buildChallengeResponse(model, true)
}

func buildChallengeResponse(model models.Challenge, admin bool) ChallengeResponse {
	requirements := model.RequirementList()
	if requirements == nil {
		requirements = []scoring.Requirement{}
	}

	response := ChallengeResponse{
		ID:             model.ID,
		Title:          model.Title,
		Description:    model.Description,
		EvaluationType: model.EvaluationType,
		Points:         model.Points,
		MaxPoints:      model.MaxPoints(),
		Requirements:   requirements,
		Active:         model.Active,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
	if admin {
		response.QRCode = model.QRCode
	}

	for _, question := range model.QuizQuestions() {
		options := make([]QuizOptionResponse, 0, len(question.Options))
		for _, option := range question.Options {
			item := QuizOptionResponse{ID: option.ID, Text: option.Text}
			if admin {
				correct := option.Correct
				item.Correct = &correct
			}
			options = append(options, item)
		}
		response.Quiz = append(response.Quiz, QuizQuestionResponse{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: options,
		})
	}

	return response
}

// NewChallengeResponseSlice converts challenges for participants.
func NewChallengeResponseSlice(items []models.Challenge) []ChallengeResponse {
	responses := make([]ChallengeResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewChallengeResponse(item))
	}
	return responses
}

// EvidenceRequest references an uploaded file or an external link.
type EvidenceRequest struct {
	RequirementID string `json:"requirementId" validate:"required"`
	URL           string `json:"url" validate:"required,url"`
	FileName      string `json:"fileName" validate:"omitempty,max=255"`
	MimeType      string `json:"mimeType" validate:"omitempty,max=128"`
	SizeBytes     int64  `json:"sizeBytes" validate:"gte=0"`
}

// SubmissionCreateRequest is the participant's response. Only the fields of
// the challenge's evaluation type are read.
type SubmissionCreateRequest struct {
	Answers []scoring.QuizAnswer `json:"answers" validate:"omitempty,dive"`
	Text    string               `json:"text" validate:"omitempty,max=20000"`
	Files   []EvidenceRequest    `json:"files" validate:"omitempty,dive"`
	Code    string               `json:"code" validate:"omitempty,max=128"`
}

// ChallengeLite summarizes a challenge inside submission responses.
type ChallengeLite struct {
	ID             uint   `json:"id"`
	Title          string `json:"title"`
	EvaluationType string `json:"evaluationType"`
}

// SubmissionResponse serializes a challenge submission.
type SubmissionResponse struct {
	ID             uint            `json:"id"`
	ChallengeID    uint            `json:"challengeId"`
	UserID         uint            `json:"userId"`
	SubmissionType string          `json:"submissionType"`
	SubmissionData json.RawMessage `json:"submissionData"`
	Status         string          `json:"status"`
	Points         int             `json:"points"`
	AdminFeedback  string          `json:"adminFeedback"`
	Version        int             `json:"version"`
	ReviewedBy     *uint           `json:"reviewedBy"`
	ReviewedAt     *time.Time      `json:"reviewedAt"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Challenge      *ChallengeLite  `json:"challenge,omitempty"`
}

// NewSubmissionResponse converts a submission model into a DTO.
func NewSubmissionResponse(model models.ChallengeSubmission) SubmissionResponse {
	data := json.RawMessage(model.SubmissionData)
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	response := SubmissionResponse{
		ID:             model.ID,
		ChallengeID:    model.ChallengeID,
		UserID:         model.UserID,
		SubmissionType: model.SubmissionType,
		SubmissionData: data,
		Status:         model.Status,
		Points:         model.Points,
		AdminFeedback:  model.AdminFeedback,
		Version:        model.Version,
		ReviewedBy:     model.ReviewedBy,
		ReviewedAt:     model.ReviewedAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if model.Challenge.ID != 0 {
		response.Challenge = &ChallengeLite{
			ID:             model.Challenge.ID,
			Title:          model.Challenge.Title,
			EvaluationType: model.Challenge.EvaluationType,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.ChallengeSubmission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item))
	}
	return responses
}

// SubmissionListRequest filters the admin submission listing.
type SubmissionListRequest struct {
	Page        int
	PageSize    int
	ChallengeID uint
	Status      string `validate:"omitempty,oneof=pending approved rejected completed"`
}

// SubmissionListResponse wraps a paginated submission listing.
type SubmissionListResponse struct {
	Items      []SubmissionResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// ReviewDetailResponse is what an administrator opens a review with.
type ReviewDetailResponse struct {
	Submission         SubmissionResponse          `json:"submission"`
	Requirements       []scoring.Requirement       `json:"requirements"`
	RequirementReviews []scoring.RequirementReview `json:"requirementReviews"`
	Totals             scoring.Totals              `json:"totals"`
}

// RequirementReviewRequest is one per-requirement decision.
type RequirementReviewRequest struct {
	RequirementID string `json:"requirementId" validate:"required,max=64"`
	Status        string `json:"status" validate:"required,oneof=pending approved rejected"`
	Feedback      string `json:"feedback" validate:"omitempty,max=2000"`
}

// GranularReviewRequest carries the full per-requirement review list.
type GranularReviewRequest struct {
	RequirementReviews []RequirementReviewRequest `json:"requirementReviews" validate:"omitempty,dive"`
	AdminFeedback      string                     `json:"adminFeedback" validate:"omitempty,max=5000"`
	Version            int                        `json:"version" validate:"gte=0"`
}

// ScoringReviews converts the request into engine reviews.
func (r GranularReviewRequest) ScoringReviews() []scoring.RequirementReview {
	reviews := make([]scoring.RequirementReview, 0, len(r.RequirementReviews))
	for _, item := range r.RequirementReviews {
		reviews = append(reviews, scoring.RequirementReview{
			RequirementID: item.RequirementID,
			Status:        scoring.ReviewStatus(item.Status),
			Feedback:      item.Feedback,
		})
	}
	return reviews
}

// DecisionRequest is a holistic approve/reject for non-file challenges.
type DecisionRequest struct {
	Status        string `json:"status" validate:"required,oneof=approved rejected"`
	Points        *int   `json:"points" validate:"omitempty,gte=0"`
	AdminFeedback string `json:"adminFeedback" validate:"omitempty,max=5000"`
	Version       int    `json:"version" validate:"gte=0"`
}

// ReviewResultResponse is returned after a review is stored.
type ReviewResultResponse struct {
	Submission SubmissionResponse `json:"submission"`
	Totals     scoring.Totals     `json:"totals"`
}

// RankingEntry is one leaderboard position.
type RankingEntry struct {
	Rank        int  `json:"rank"`
	UserID      uint `json:"userId"`
	TotalPoints int  `json:"totalPoints"`
	Completed   int  `json:"completed"`
}

// RankingResponse is the leaderboard payload.
type RankingResponse struct {
	Entries     []RankingEntry `json:"entries"`
	GeneratedAt time.Time      `json:"generatedAt"`
	CacheHit    bool           `json:"cacheHit"`
}

// FeedbackSuggestionResponse carries an AI-drafted overall feedback.
type FeedbackSuggestionResponse struct {
	Suggestion string `json:"suggestion"`
	Model      string `json:"model"`
}
