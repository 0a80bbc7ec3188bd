package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hireloop/assess-api/internal/models"
)

// CandidateRepository exposes lookups for candidate references.
type CandidateRepository interface {
	Create(ctx context.Context, candidate *models.Candidate) error
	Exists(ctx context.Context, id uint) (bool, error)
}

// NewCandidateRepository constructs a candidate repository.
func NewCandidateRepository(db *gorm.DB) CandidateRepository {
	return &candidateRepository{db: db}
}

type candidateRepository struct {
	db *gorm.DB
}

func (r *candidateRepository) Create(ctx context.Context, candidate *models.Candidate) error {
	return r.db.WithContext(ctx).Create(candidate).Error
}

func (r *candidateRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Candidate{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// PositionRepository exposes lookups for job position references.
type PositionRepository interface {
	Create(ctx context.Context, position *models.JobPosition) error
	Exists(ctx context.Context, id uint) (bool, error)
}

// NewPositionRepository constructs a job position repository.
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

type positionRepository struct {
	db *gorm.DB
}

func (r *positionRepository) Create(ctx context.Context, position *models.JobPosition) error {
	return r.db.WithContext(ctx).Create(position).Error
}

func (r *positionRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.JobPosition{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
