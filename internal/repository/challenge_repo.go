package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hireloop/assess-api/internal/models"
)

// ChallengeRepository exposes persistence helpers for the challenge bank.
type ChallengeRepository interface {
	Create(ctx context.Context, challenge *models.Challenge) error
	ListForPosition(ctx context.Context, positionID uint, kind string, limit int) ([]models.Challenge, error)
}

// NewChallengeRepository constructs a challenge repository.
func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

type challengeRepository struct {
	db *gorm.DB
}

func (r *challengeRepository) Create(ctx context.Context, challenge *models.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *challengeRepository) ListForPosition(ctx context.Context, positionID uint, kind string, limit int) ([]models.Challenge, error) {
	var challenges []models.Challenge
	query := r.db.WithContext(ctx).
		Where("position_id = ? AND kind = ?", positionID, kind).
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&challenges).Error; err != nil {
		return nil, err
	}
	return challenges, nil
}
