package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/campus-engage-api/internal/models"
)

// ChallengeFilter narrows challenge listings.
type ChallengeFilter struct {
	ActiveOnly     bool
	EvaluationType string
}

// ChallengeRepository persists challenge definitions.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	GetByID(ctx context.Context, id uint) (models.Challenge, error)
	List(ctx context.Context, filter ChallengeFilter) ([]models.Challenge, error)
	Update(ctx context.Context, challenge *models.Challenge) error
}

type challengeRepository struct {
	db *gorm.DB
}

// NewChallengeRepository constructs a challenge repository.
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *challengeRepository) GetByID(ctx context.Context, id uint) (models.Challenge, error) {
	var challenge models.Challenge
	if err := r.db.WithContext(ctx).First(&challenge, id).Error; err != nil {
		return models.Challenge{}, err
	}
	return challenge, nil
}

func (r *challengeRepository) List(ctx context.Context, filter ChallengeFilter) ([]models.Challenge, error) {
	query := r.db.WithContext(ctx).Model(&models.Challenge{})
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if filter.EvaluationType != "" {
		query = query.Where("evaluation_type = ?", filter.EvaluationType)
	}

	var challenges []models.Challenge
	if err := query.Order("created_at DESC").Order("id DESC").Find(&challenges).Error; err != nil {
		return nil, err
	}
	return challenges, nil
}

func (r *challengeRepository) Update(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Save(challenge).Error
}
