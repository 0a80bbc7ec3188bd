package dto

import (
	"github.com/hireloop/assess-api/internal/models"
)

// SubmitRequest carries one candidate artifact: source code for coding items
// (language required), or the storage URL of a recorded answer for interview
// items.
type SubmitRequest struct {
	ItemID   uint   `json:"item_id" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required,min=1"`
	Language string `json:"language"`
}

// SubmitResponse acknowledges a submission. Execution results are returned
// synchronously for coding items; AI scoring follows asynchronously.
type SubmitResponse struct {
	SubmissionID    uint                   `json:"submission_id"`
	ExecutionResult map[string]interface{} `json:"execution_result,omitempty"`
}

// SubmissionResponse represents a stored submission.
type SubmissionResponse struct {
	ID               uint                   `json:"id"`
	ItemID           uint                   `json:"item_id"`
	Language         string                 `json:"language,omitempty"`
	AudioURL         string                 `json:"audio_url,omitempty"`
	Transcript       string                 `json:"transcript,omitempty"`
	ExecutionResult  map[string]interface{} `json:"execution_result,omitempty"`
	ProcessingStatus string                 `json:"processing_status"`
	ProcessingError  string                 `json:"processing_error,omitempty"`
}

// EvaluationResponse exposes the AI judgment of one submission. Absent
// sub-scores stay null; they are never derived from the others.
type EvaluationResponse struct {
	ID               uint     `json:"id"`
	SubmissionID     uint     `json:"submission_id"`
	CorrectnessScore *float64 `json:"correctness_score,omitempty"`
	EfficiencyScore  *float64 `json:"efficiency_score,omitempty"`
	StyleScore       *float64 `json:"style_score,omitempty"`
	ReadabilityScore *float64 `json:"readability_score,omitempty"`
	PlagiarismScore  *float64 `json:"plagiarism_score,omitempty"`
	RelevanceScore   *float64 `json:"relevance_score,omitempty"`
	ClarityScore     *float64 `json:"clarity_score,omitempty"`
	SentimentScore   *float64 `json:"sentiment_score,omitempty"`
	ConfidenceScore  *float64 `json:"confidence_score,omitempty"`
	KeywordMatches   []string `json:"keyword_matches,omitempty"`
	Feedback         string   `json:"feedback"`
	Provider         string   `json:"provider,omitempty"`
}

// NewSubmissionResponse builds a submission DTO from a model.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:               submission.ID,
		ItemID:           submission.ItemID,
		Language:         submission.Language,
		AudioURL:         submission.AudioURL,
		Transcript:       submission.Transcript,
		ExecutionResult:  map[string]interface{}(submission.ExecutionResult),
		ProcessingStatus: submission.ProcessingStatus,
		ProcessingError:  submission.ProcessingError,
	}
}
