package dto

import (
	"time"

	"github.com/hireloop/assess-api/internal/models"
)

// CreateSessionRequest schedules a new assessment session.
type CreateSessionRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=coding_test interview"`
	CandidateID uint   `json:"candidate_id" validate:"required,gt=0"`
	PositionID  uint   `json:"position_id" validate:"required,gt=0"`
}

// AntiCheatEventRequest reports one discrete client-side event.
type AntiCheatEventRequest struct {
	EventType string `json:"event_type" validate:"required"`
}

// SessionResponse represents a session to API consumers.
type SessionResponse struct {
	ID           uint       `json:"id"`
	Kind         string     `json:"kind"`
	CandidateID  uint       `json:"candidate_id"`
	PositionID   uint       `json:"position_id"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	FocusChanges int        `json:"focus_changes"`
	PasteCount   int        `json:"paste_count"`
	CopyCount    int        `json:"copy_count"`
}

// SessionItemResponse is the candidate-facing view of one item. Test cases
// and ideal-answer points stay server-side.
type SessionItemResponse struct {
	ID        uint   `json:"id"`
	Position  int    `json:"position"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Statement string `json:"statement"`
}

// StartSessionResponse returns the started session with its ordered items.
type StartSessionResponse struct {
	Session SessionResponse       `json:"session"`
	Items   []SessionItemResponse `json:"items"`
}

// EndSessionResponse is the provisional reply returned before the summarizer
// has run.
type EndSessionResponse struct {
	SessionID    uint   `json:"session_id"`
	Status       string `json:"status"`
	FinalSummary string `json:"final_summary"`
}

// Per-item evaluation states reported by the read API.
const (
	ItemEvaluationNotSubmitted = "not_submitted"
	ItemEvaluationProcessing   = "processing"
	ItemEvaluationFailed       = "failed"
	ItemEvaluationComplete     = "complete"
)

// ItemEvaluationResponse is the per-item breakdown inside the evaluation read.
type ItemEvaluationResponse struct {
	ItemID     uint                `json:"item_id"`
	Position   int                 `json:"position"`
	Title      string              `json:"title"`
	Status     string              `json:"status"`
	Submission *SubmissionResponse `json:"submission,omitempty"`
	Evaluation *EvaluationResponse `json:"evaluation,omitempty"`
}

// SessionEvaluationResponse is the poll target for reviewers: the session
// summary when available, an explicit in-progress indicator otherwise.
type SessionEvaluationResponse struct {
	SessionID      uint                     `json:"session_id"`
	Status         string                   `json:"status"`
	SummaryStatus  string                   `json:"summary_status"`
	OverallScore   *float64                 `json:"overall_score,omitempty"`
	FinalSummary   string                   `json:"final_summary"`
	SummaryDetails map[string]interface{}   `json:"summary_details,omitempty"`
	FocusChanges   int                      `json:"focus_changes"`
	PasteCount     int                      `json:"paste_count"`
	CopyCount      int                      `json:"copy_count"`
	Items          []ItemEvaluationResponse `json:"items"`
}

// NewSessionResponse builds a session DTO from a model.
func NewSessionResponse(session models.AssessmentSession) SessionResponse {
	return SessionResponse{
		ID:           session.ID,
		Kind:         session.Kind,
		CandidateID:  session.CandidateID,
		PositionID:   session.PositionID,
		Status:       session.Status,
		StartedAt:    session.StartedAt,
		EndedAt:      session.EndedAt,
		ExpiresAt:    session.ExpiresAt,
		FocusChanges: session.FocusChanges,
		PasteCount:   session.PasteCount,
		CopyCount:    session.CopyCount,
	}
}

// NewSessionItemResponse builds an item DTO from a model.
func NewSessionItemResponse(item models.SessionItem) SessionItemResponse {
	return SessionItemResponse{
		ID:        item.ID,
		Position:  item.Position,
		Kind:      item.Kind,
		Title:     item.Title,
		Statement: item.Statement,
	}
}
