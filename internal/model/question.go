package model

import (
	"time"

	"github.com/google/uuid"
)

// OptionLabels are the four fixed option labels every question carries.
var OptionLabels = []string{"A", "B", "C", "D"}

// Question represents a single multiple-choice question in the bank.
// Correct is one of OptionLabels and must never be exposed to students.
type Question struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"question"`
	Options   []string  `json:"options"`
	Correct   string    `json:"correct"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
}

// QuestionView is the student-facing projection of a question.
// It deliberately omits the correct option.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// View strips the answer key from a question for display.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:      q.ID.String(),
		Text:    q.Text,
		Options: q.Options,
	}
}

// AddQuestionRequest is the payload for adding a question to the bank.
type AddQuestionRequest struct {
	Text    string   `json:"question" binding:"required,min=1,max=2000"`
	Options []string `json:"options" binding:"required,len=4,dive,required,max=500"`
	Correct string   `json:"correct" binding:"required,oneof=A B C D"`
	Subject string   `json:"subject" binding:"required,min=1,max=100"`
}
