package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission processing states. A failed submission keeps the raw error for
// manual reprocessing; it is never retried automatically.
const (
	SubmissionStatusPending    = "pending"
	SubmissionStatusProcessing = "processing"
	SubmissionStatusEvaluated  = "evaluated"
	SubmissionStatusFailed     = "failed"
)

// Submission is the artifact a candidate provides for one item: source code
// for a coding challenge, or a recorded answer for an interview question.
type Submission struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	SessionID uint `gorm:"not null;index" json:"session_id"`
	ItemID    uint `gorm:"not null;index" json:"item_id"`

	Language string `gorm:"size:32" json:"language,omitempty"`
	Code     string `gorm:"type:text" json:"code,omitempty"`
	AudioURL string `gorm:"size:512" json:"audio_url,omitempty"`

	// Sandbox output for coding submissions, written in the submit path.
	ExecutionResult datatypes.JSONMap `json:"execution_result,omitempty"`
	// Speech-to-text output for interview submissions, written by the orchestrator.
	Transcript string `gorm:"type:text" json:"transcript,omitempty"`

	ProcessingStatus string `gorm:"size:32;not null;default:pending" json:"processing_status"`
	ProcessingError  string `gorm:"type:text" json:"processing_error,omitempty"`

	SubmittedAt time.Time `gorm:"autoCreateTime" json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Evaluation *Evaluation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"evaluation,omitempty"`
}

// HasBeenEvaluated reports whether the evaluation pipeline finished for this
// submission.
func (s Submission) HasBeenEvaluated() bool {
	return s.ProcessingStatus == SubmissionStatusEvaluated
}
