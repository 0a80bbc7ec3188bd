package models

import "time"

// Candidate is the person taking an assessment. Profile management lives in the
// talent service; only the reference is stored here.
type Candidate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`

	Sessions []AssessmentSession `gorm:"foreignKey:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// JobPosition is the opening a session assesses a candidate for.
type JobPosition struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Seniority string    `gorm:"size:64" json:"seniority"`
	CreatedAt time.Time `json:"created_at"`

	Challenges []Challenge         `gorm:"foreignKey:PositionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Sessions   []AssessmentSession `gorm:"foreignKey:PositionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
