package model

import "time"

// SessionStatus enumerates exam session states. Expiry is never stored:
// an expired session is an IN_PROGRESS session whose remaining time is zero.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// ExamSession represents a student's exam attempt for one subject.
// At most one session exists per (roll number, subject) pair.
type ExamSession struct {
	RollNumber  string            `json:"roll_number"`
	Subject     string            `json:"subject"`
	QuestionIDs []string          `json:"questions"`
	Answers     map[string]string `json:"answers"`
	StartedAt   time.Time         `json:"started_at"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	Score       *int              `json:"score,omitempty"`
	Total       int               `json:"total"`
	Percentage  *float64          `json:"percentage,omitempty"`
	Grade       *string           `json:"grade,omitempty"`
	Status      SessionStatus     `json:"status"`
}

// ExamPaper is the student-facing state of an in-progress session:
// the question set without answer keys, the remaining time, and any
// previously saved answers (for resume after a reload).
type ExamPaper struct {
	Subject          string            `json:"subject"`
	Questions        []QuestionView    `json:"questions"`
	RemainingSeconds int               `json:"remaining_time"`
	SavedAnswers     map[string]string `json:"saved_answers"`
}

// SaveAnswerRequest is the payload for persisting a single answer.
type SaveAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Answer     string `json:"answer" binding:"required,oneof=A B C D"`
}

// SubjectResult is one completed exam in a student's result listing.
type SubjectResult struct {
	RollNumber string    `json:"roll_number"`
	Name       string    `json:"name"`
	Subject    string    `json:"subject"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Grade      string    `json:"grade"`
	Passed     bool      `json:"passed"`
	ExamDate   time.Time `json:"exam_date"`
}
