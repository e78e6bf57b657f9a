package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/campus-engage-api/internal/models"
)

// ErrStaleVersion indicates the stored submission version differs from the expected one.
var ErrStaleVersion = errors.New("stale submission version")

// ChallengeSubmissionFilter narrows submission listings.
type ChallengeSubmissionFilter struct {
	Page        int
	PageSize    int
	ChallengeID *uint
	UserID      *uint
	Status      string
}

// RankingRow is one aggregated leaderboard line.
type RankingRow struct {
	UserID      uint
	TotalPoints int
	Completed   int
}

// ChallengeSubmissionRepository persists challenge submissions.
type ChallengeSubmissionRepository interface {
	Create(ctx context.Context, submission *models.ChallengeSubmission) error
	GetByID(ctx context.Context, id uint) (models.ChallengeSubmission, error)
	List(ctx context.Context, filter ChallengeSubmissionFilter) ([]models.ChallengeSubmission, int64, error)
	ExistsForUser(ctx context.Context, challengeID, userID uint) (bool, error)
	UpdateReview(ctx context.Context, submission *models.ChallengeSubmission, expectedVersion int) error
	Ranking(ctx context.Context, limit int) ([]RankingRow, error)
}

type challengeSubmissionRepository struct {
	db *gorm.DB
}

// NewChallengeSubmissionRepository constructs a submission repository.
func NewChallengeSubmissionRepository(db *gorm.DB) ChallengeSubmissionRepository {
	return &challengeSubmissionRepository{db: db}
}

func (r *challengeSubmissionRepository) Create(ctx context.Context, submission *models.ChallengeSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *challengeSubmissionRepository) GetByID(ctx context.Context, id uint) (models.ChallengeSubmission, error) {
	var submission models.ChallengeSubmission
	if err := r.db.WithContext(ctx).Preload("Challenge").First(&submission, id).Error; err != nil {
		return models.ChallengeSubmission{}, err
	}
	return submission, nil
}

func (r *challengeSubmissionRepository) List(ctx context.Context, filter ChallengeSubmissionFilter) ([]models.ChallengeSubmission, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ChallengeSubmission{})
	if filter.ChallengeID != nil {
		query = query.Where("challenge_id = ?", *filter.ChallengeID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var submissions []models.ChallengeSubmission
	if err := query.Preload("Challenge").Order("created_at DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

func (r *challengeSubmissionRepository) ExistsForUser(ctx context.Context, challengeID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChallengeSubmission{}).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		Count(&count).Error
	return count > 0, err
}

// UpdateReview writes the review fields and bumps the version. A positive
// expectedVersion must match the stored one.
func (r *challengeSubmissionRepository) UpdateReview(ctx context.Context, submission *models.ChallengeSubmission, expectedVersion int) error {
	query := r.db.WithContext(ctx).Model(&models.ChallengeSubmission{}).Where("id = ?", submission.ID)
	if expectedVersion > 0 {
		query = query.Where("version = ?", expectedVersion)
	}

	result := query.Updates(map[string]interface{}{
		"submission_data": submission.SubmissionData,
		"status":          submission.Status,
		"points":          submission.Points,
		"admin_feedback":  submission.AdminFeedback,
		"reviewed_by":     submission.ReviewedBy,
		"reviewed_at":     submission.ReviewedAt,
		"version":         gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		exists, err := r.exists(ctx, submission.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrStaleVersion
		}
		return gorm.ErrRecordNotFound
	}

	return r.db.WithContext(ctx).Preload("Challenge").First(submission, submission.ID).Error
}

func (r *challengeSubmissionRepository) exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChallengeSubmission{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// Ranking sums awarded points per user. Ties go to whoever reached the total
// first, then to the lower user id.
func (r *challengeSubmissionRepository) Ranking(ctx context.Context, limit int) ([]RankingRow, error) {
	query := r.db.WithContext(ctx).Model(&models.ChallengeSubmission{}).
		Select("user_id, SUM(points) AS total_points, COUNT(*) AS completed").
		Where("status IN ?", []string{"approved", "completed"}).
		Group("user_id").
		Order("total_points DESC").
		Order("MAX(updated_at) ASC").
		Order("user_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []RankingRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
