package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/campus-engage-api/pkg/scoring"
)

// ChallengeSubmission is one user's response to a challenge.
type ChallengeSubmission struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ChallengeID    uint           `gorm:"not null;uniqueIndex:idx_submission_challenge_user" json:"challenge_id"`
	UserID         uint           `gorm:"not null;uniqueIndex:idx_submission_challenge_user;index" json:"user_id"`
	SubmissionType string         `gorm:"size:16;not null" json:"submission_type"`
	SubmissionData datatypes.JSON `gorm:"type:json" json:"-"`
	Status         string         `gorm:"size:16;not null;index" json:"status"`
	Points         int            `gorm:"not null;default:0" json:"points"`
	AdminFeedback  string         `gorm:"type:text" json:"admin_feedback"`
	Version        int            `gorm:"not null;default:1" json:"version"`
	ReviewedBy     *uint          `json:"reviewed_by"`
	ReviewedAt     *time.Time     `json:"reviewed_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Challenge      Challenge      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"challenge"`
}

// SetPayload stores the tagged submission payload.
func (s *ChallengeSubmission) SetPayload(payload scoring.Payload) error {
	data, err := scoring.EncodePayload(payload)
	if err != nil {
		return err
	}
	s.SubmissionType = string(payload.Kind())
	s.SubmissionData = datatypes.JSON(data)
	return nil
}

// Payload decodes the stored submission payload.
func (s ChallengeSubmission) Payload() (scoring.Payload, error) {
	return scoring.DecodePayload(s.SubmissionData)
}

// ScoringView converts the record into the view consumed by review sessions.
func (s ChallengeSubmission) ScoringView() (scoring.Submission, error) {
	payload, err := s.Payload()
	if err != nil {
		return scoring.Submission{}, err
	}

	return scoring.Submission{
		ID:            s.ID,
		ChallengeID:   s.ChallengeID,
		UserID:        s.UserID,
		Data:          payload,
		Status:        scoring.SubmissionStatus(s.Status),
		Points:        s.Points,
		AdminFeedback: s.AdminFeedback,
		Version:       s.Version,
	}, nil
}
