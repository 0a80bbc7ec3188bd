package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionKind distinguishes timed coding tests from AI interview sessions.
const (
	SessionKindCodingTest = "coding_test"
	SessionKindInterview  = "interview"
)

// ChallengeDifficulty levels for the bank.
const (
	ChallengeDifficultyEasy   = "easy"
	ChallengeDifficultyMedium = "medium"
	ChallengeDifficultyHard   = "hard"
)

// Challenge is a bank entry owned by a job position: a coding problem with test
// cases, or an interview question with ideal-answer points. Sessions copy bank
// entries into SessionItems at start time.
type Challenge struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	PositionID uint   `gorm:"not null;index" json:"position_id"`
	Kind       string `gorm:"size:32;not null;index" json:"kind"`
	Title      string `gorm:"size:255;not null" json:"title"`
	Statement  string `gorm:"type:text;not null" json:"statement"`
	Difficulty string `gorm:"size:16;default:medium" json:"difficulty"`

	// Coding: [{"input": "...", "expected_output": "...", "is_hidden": false}]
	TestCases datatypes.JSON `json:"test_cases,omitempty"`
	// Interview: ["mentions trade-offs", "names a concrete metric", ...]
	IdealAnswerPoints datatypes.JSON `json:"ideal_answer_points,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
