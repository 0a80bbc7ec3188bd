package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hireloop/assess-api/internal/models"
)

// Counter columns addressable by anti-cheat events. Only whitelisted columns
// may be incremented; the increment itself is a single SQL expression so
// concurrent events never lose updates.
var counterColumns = map[string]struct{}{
	"focus_changes": {},
	"paste_count":   {},
	"copy_count":    {},
}

// SessionRepository exposes persistence helpers for assessment sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.AssessmentSession) error
	GetByID(ctx context.Context, id uint) (models.AssessmentSession, error)
	GetDetailed(ctx context.Context, id uint) (models.AssessmentSession, error)
	GetItem(ctx context.Context, id uint) (models.SessionItem, error)
	Start(ctx context.Context, id uint, startedAt, expiresAt time.Time, items []models.SessionItem) (bool, error)
	Complete(ctx context.Context, id uint, endedAt time.Time) (bool, error)
	Expire(ctx context.Context, id uint, from string) (bool, error)
	IncrementCounter(ctx context.Context, id uint, column string) (bool, error)
	SetSummary(ctx context.Context, id uint, score float64, summary string, details datatypes.JSONMap) (bool, error)
	MarkSummaryFailed(ctx context.Context, id uint, reason string) error
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

type sessionRepository struct {
	db *gorm.DB
}

func (r *sessionRepository) Create(ctx context.Context, session *models.AssessmentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id uint) (models.AssessmentSession, error) {
	var session models.AssessmentSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("session_items.position asc") }).
		First(&session, id).Error
	if err != nil {
		return models.AssessmentSession{}, err
	}
	return session, nil
}

func (r *sessionRepository) GetDetailed(ctx context.Context, id uint) (models.AssessmentSession, error) {
	var session models.AssessmentSession
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("session_items.position asc") }).
		Preload("Items.Submissions", func(db *gorm.DB) *gorm.DB { return db.Order("submissions.id asc") }).
		Preload("Items.Submissions.Evaluation").
		First(&session, id).Error
	if err != nil {
		return models.AssessmentSession{}, err
	}
	return session, nil
}

func (r *sessionRepository) GetItem(ctx context.Context, id uint) (models.SessionItem, error) {
	var item models.SessionItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return models.SessionItem{}, err
	}
	return item, nil
}

// Start flips the session to started and attaches its ordered items in one
// transaction. The guard on the prior status makes the transition observable
// exactly once even under concurrent start calls.
func (r *sessionRepository) Start(ctx context.Context, id uint, startedAt, expiresAt time.Time, items []models.SessionItem) (bool, error) {
	started := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AssessmentSession{}).
			Where("id = ? AND status = ?", id, models.SessionStatusScheduled).
			Updates(map[string]interface{}{
				"status":     models.SessionStatusStarted,
				"started_at": startedAt,
				"expires_at": expiresAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		for i := range items {
			items[i].SessionID = id
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		started = true
		return nil
	})
	return started, err
}

func (r *sessionRepository) Complete(ctx context.Context, id uint, endedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("id = ? AND status = ?", id, models.SessionStatusStarted).
		Updates(map[string]interface{}{
			"status":         models.SessionStatusCompleted,
			"ended_at":       endedAt,
			"summary_status": models.SummaryStatusPending,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *sessionRepository) Expire(ctx context.Context, id uint, from string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", models.SessionStatusExpired)
	return result.RowsAffected > 0, result.Error
}

func (r *sessionRepository) IncrementCounter(ctx context.Context, id uint, column string) (bool, error) {
	if _, ok := counterColumns[column]; !ok {
		return false, fmt.Errorf("unknown counter column %q", column)
	}

	result := r.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("id = ? AND status = ?", id, models.SessionStatusStarted).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	return result.RowsAffected > 0, result.Error
}

// SetSummary writes the session-level summary exactly once. The IS NULL guard
// is the single write path: a session that already carries a summary is left
// untouched and the caller sees RowsAffected zero.
func (r *sessionRepository) SetSummary(ctx context.Context, id uint, score float64, summary string, details datatypes.JSONMap) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("id = ? AND final_summary IS NULL", id).
		Updates(map[string]interface{}{
			"overall_score":   score,
			"final_summary":   summary,
			"summary_status":  models.SummaryStatusCompleted,
			"summary_error":   "",
			"summary_details": details,
		})
	return result.RowsAffected > 0, result.Error
}

func (r *sessionRepository) MarkSummaryFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("id = ? AND final_summary IS NULL", id).
		Updates(map[string]interface{}{
			"summary_status": models.SummaryStatusFailed,
			"summary_error":  reason,
		}).Error
}
