package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionItem is one challenge or question inside a session's ordered
// sequence. Items are copied from the position's bank when the session starts
// and are immutable afterwards.
type SessionItem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SessionID   uint   `gorm:"not null;index" json:"session_id"`
	ChallengeID uint   `gorm:"not null" json:"challenge_id"`
	Position    int    `gorm:"not null" json:"position"`
	Kind        string `gorm:"size:32;not null" json:"kind"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Statement   string `gorm:"type:text;not null" json:"statement"`

	TestCases         datatypes.JSON `json:"test_cases,omitempty"`
	IdealAnswerPoints datatypes.JSON `json:"ideal_answer_points,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Submissions []Submission `gorm:"foreignKey:ItemID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"submissions,omitempty"`
}
