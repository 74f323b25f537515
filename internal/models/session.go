package models

import "time"

// SessionState tracks where a candidate is in the interview lifecycle.
type SessionState string

const (
	StateUnverified SessionState = "unverified"
	StateVerifying  SessionState = "verifying"
	StateVerified   SessionState = "verified"
	StateInProgress SessionState = "in_progress"
	StateCompleted  SessionState = "completed"
	StateAborted    SessionState = "aborted"
)

// VerificationResult is the outcome of a single identity check. Immutable
// once produced. Success distinguishes a clean mismatch from a failed check
// (undecodable image, model error).
type VerificationResult struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
	Success    bool    `json:"success"`
}

// FrameSnapshot is the latest emotion/flag reading from the live video
// stream. Only one snapshot is retained at a time; each sampling tick
// replaces the previous one.
type FrameSnapshot struct {
	CapturedAt time.Time `json:"captured_at"`
	Emotion    string    `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Flags      []string  `json:"flags,omitempty"`
}

// AnswerRecord captures one answered question. Appended exactly once per
// question and never mutated afterwards; ordering is submission order.
type AnswerRecord struct {
	Question string        `json:"question"`
	Answer   string        `json:"answer"`
	Score    int           `json:"score"`
	Feedback string        `json:"feedback"`
	Emotion  FrameSnapshot `json:"emotion_at_submission"`
	Flags    []string      `json:"flags,omitempty"`
}

// Session is all state scoped to one candidate's interview. Mutated only by
// the session engine.
type Session struct {
	ID        string         `json:"id"`
	Candidate string         `json:"candidate"`
	State     SessionState   `json:"state"`
	Topic     string         `json:"topic,omitempty"`
	Questions []string       `json:"questions,omitempty"`
	Index     int            `json:"current_question_index"`
	Records   []AnswerRecord `json:"records,omitempty"`
}

// Report is derived from a session's records, never stored independently.
type Report struct {
	AverageScore float64        `json:"average_score"`
	Records      []AnswerRecord `json:"records"`
}

// BuildReport recomputes the report from the given records.
func BuildReport(records []AnswerRecord) Report {
	if len(records) == 0 {
		return Report{Records: []AnswerRecord{}}
	}

	total := 0
	for _, r := range records {
		total += r.Score
	}

	return Report{
		AverageScore: float64(total) / float64(len(records)),
		Records:      records,
	}
}
