package repository

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"proctorview/internal/database"
	"proctorview/internal/models"
)

// InterviewArchive persists completed interviews. It satisfies the session
// engine's Archiver.
type InterviewArchive struct{}

func NewInterviewArchive() *InterviewArchive {
	return &InterviewArchive{}
}

// Archive writes the interview header and all answer rows in one
// transaction.
func (a *InterviewArchive) Archive(ctx context.Context, sess models.Session, report models.Report) error {
	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.InterviewRow{
			SessionID:    sess.ID,
			Candidate:    sess.Candidate,
			Topic:        sess.Topic,
			AverageScore: report.AverageScore,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		for i, record := range report.Records {
			answer := models.InterviewAnswerRow{
				InterviewID:       row.ID,
				Position:          i,
				Question:          record.Question,
				AnswerText:        record.Answer,
				Score:             record.Score,
				Feedback:          record.Feedback,
				Emotion:           record.Emotion.Emotion,
				EmotionConfidence: record.Emotion.Confidence,
				Flags:             pq.StringArray(record.Flags),
			}
			if err := tx.Create(&answer).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetInterviewBySession loads an archived interview header.
func GetInterviewBySession(ctx context.Context, sessionID string) (*models.InterviewRow, error) {
	var row models.InterviewRow
	result := database.DB.WithContext(ctx).First(&row, "session_id = ?", sessionID)
	return &row, result.Error
}

// GetAnswersForInterview loads the archived answers in submission order.
func GetAnswersForInterview(ctx context.Context, interviewID uint) ([]models.InterviewAnswerRow, error) {
	var rows []models.InterviewAnswerRow
	result := database.DB.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("position ASC").
		Find(&rows)
	return rows, result.Error
}

// ListInterviewsForCandidate returns a candidate's archived interviews,
// newest first.
func ListInterviewsForCandidate(ctx context.Context, candidate string) ([]models.InterviewRow, error) {
	var rows []models.InterviewRow
	result := database.DB.WithContext(ctx).
		Where("candidate = ?", candidate).
		Order("created_at DESC").
		Find(&rows)
	return rows, result.Error
}
