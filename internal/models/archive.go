package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// InterviewRow is the persisted form of a completed interview.
type InterviewRow struct {
	ID           uint   `gorm:"primaryKey"`
	SessionID    string `gorm:"uniqueIndex"`
	Candidate    string `gorm:"index"`
	Topic        string
	AverageScore float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InterviewAnswerRow is one archived answer, ordered by Position.
type InterviewAnswerRow struct {
	gorm.Model
	InterviewID       uint
	Interview         InterviewRow `gorm:"foreignKey:InterviewID"`
	Position          int
	Question          string
	AnswerText        string
	Score             int
	Feedback          string
	Emotion           string
	EmotionConfidence float64
	Flags             pq.StringArray `gorm:"type:text[]"`
}
