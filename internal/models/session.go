package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionStatus values. Transitions are monotonic: scheduled -> started ->
// completed, with scheduled/started -> expired applied lazily on access.
const (
	SessionStatusScheduled = "scheduled"
	SessionStatusStarted   = "started"
	SessionStatusCompleted = "completed"
	SessionStatusExpired   = "expired"
)

// SummaryStatus tracks the session-level AI summary independently of the
// lifecycle status, so a poll can tell "in progress" from "failed".
const (
	SummaryStatusNone      = "none"
	SummaryStatusPending   = "pending"
	SummaryStatusCompleted = "completed"
	SummaryStatusFailed    = "failed"
)

// AssessmentSession is one timed attempt by a candidate at a coding test or
// AI interview for a job position.
type AssessmentSession struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Kind        string `gorm:"size:32;not null" json:"kind"`
	CandidateID uint   `gorm:"not null;index" json:"candidate_id"`
	PositionID  uint   `gorm:"not null;index" json:"position_id"`
	Status      string `gorm:"size:32;not null;default:scheduled" json:"status"`

	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`

	// Set exactly once by the summarizer after completion.
	OverallScore   *float64          `json:"overall_score"`
	FinalSummary   *string           `gorm:"type:text" json:"final_summary"`
	SummaryStatus  string            `gorm:"size:32;not null;default:none" json:"summary_status"`
	SummaryError   string            `gorm:"type:text" json:"summary_error,omitempty"`
	SummaryDetails datatypes.JSONMap `json:"summary_details,omitempty"`

	// Anti-cheat counters, incremented atomically in SQL, never decremented.
	FocusChanges int `gorm:"not null;default:0" json:"focus_changes"`
	PasteCount   int `gorm:"not null;default:0" json:"paste_count"`
	CopyCount    int `gorm:"not null;default:0" json:"copy_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Candidate Candidate     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Position  JobPosition   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Items     []SessionItem `gorm:"foreignKey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items,omitempty"`
}

// IsTerminal reports whether the session can no longer accept work.
func (s AssessmentSession) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusExpired
}

// ExpiredBy reports whether the session deadline has passed at the given time
// while the session is still in a live state.
func (s AssessmentSession) ExpiredBy(now time.Time) bool {
	if s.Status != SessionStatusScheduled && s.Status != SessionStatusStarted {
		return false
	}
	return now.After(s.ExpiresAt)
}

// HasSummary reports whether the summarizer already wrote its result.
func (s AssessmentSession) HasSummary() bool {
	return s.FinalSummary != nil
}
