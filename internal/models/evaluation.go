package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation is the AI-derived judgment of one submission. Each sub-score is
// independently nullable: a score absent from the model reply stays null
// rather than being inferred from the others. Rows are immutable after
// creation; the unique index enforces at most one evaluation per submission.
type Evaluation struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	SubmissionID uint `gorm:"not null;uniqueIndex" json:"submission_id"`

	// Coding sub-scores, 0-100.
	CorrectnessScore *float64 `json:"correctness_score,omitempty"`
	EfficiencyScore  *float64 `json:"efficiency_score,omitempty"`
	StyleScore       *float64 `json:"style_score,omitempty"`
	ReadabilityScore *float64 `json:"readability_score,omitempty"`
	PlagiarismScore  *float64 `json:"plagiarism_score,omitempty"`

	// Interview sub-scores: 0-100 except sentiment, which is -1..1.
	RelevanceScore  *float64 `json:"relevance_score,omitempty"`
	ClarityScore    *float64 `json:"clarity_score,omitempty"`
	SentimentScore  *float64 `json:"sentiment_score,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`

	KeywordMatches datatypes.JSON    `json:"keyword_matches,omitempty"`
	Feedback       string            `gorm:"type:text" json:"feedback"`
	Provider       string            `gorm:"size:32" json:"provider"`
	Raw            datatypes.JSONMap `json:"raw,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
