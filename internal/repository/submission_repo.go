package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hireloop/assess-api/internal/models"
)

// SubmissionRepository exposes persistence helpers for submissions and their
// evaluations.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	SetExecutionResult(ctx context.Context, id uint, result datatypes.JSONMap) error
	SetTranscript(ctx context.Context, id uint, transcript string) error
	SetProcessingStatus(ctx context.Context, id uint, status string) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	SaveEvaluation(ctx context.Context, evaluation *models.Evaluation) error
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Evaluation").
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) SetExecutionResult(ctx context.Context, id uint, result datatypes.JSONMap) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("execution_result", result).Error
}

func (r *submissionRepository) SetTranscript(ctx context.Context, id uint, transcript string) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("transcript", transcript).Error
}

func (r *submissionRepository) SetProcessingStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("processing_status", status).Error
}

func (r *submissionRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": models.SubmissionStatusFailed,
			"processing_error":  reason,
		}).Error
}

// SaveEvaluation persists an evaluation; the unique index on submission_id
// rejects a second row for the same submission.
func (r *submissionRepository) SaveEvaluation(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}
