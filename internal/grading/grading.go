// Package grading implements the pure scoring and grade-assignment rules.
// It has no dependencies on storage or transport and is fully deterministic.
package grading

import (
	"math"

	"github.com/olexam/portal-backend/internal/model"
)

// Result is the outcome of scoring one answer set against one question set.
type Result struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Grade      string  `json:"grade"`
}

// Boundary maps a grade label to its minimum qualifying percentage.
type Boundary struct {
	Grade string
	Min   float64
}

// Boundaries is an ordered grade table, scanned highest threshold first.
// The last entry must cover 0 so every percentage resolves to a grade.
type Boundaries []Boundary

// DefaultBoundaries is the standard O-Level grade table.
var DefaultBoundaries = Boundaries{
	{"A+", 90},
	{"A", 80},
	{"B", 70},
	{"C", 60},
	{"D", 50},
	{"E", 40},
	{"F", 0},
}

// GradeFor returns the label of the highest boundary whose threshold is at
// or below the given percentage. Falls back to the lowest tier if no
// boundary matches (only possible with a malformed table).
func (b Boundaries) GradeFor(percentage float64) string {
	for _, entry := range b {
		if percentage >= entry.Min {
			return entry.Grade
		}
	}
	return "F"
}

// Score counts exact, case-sensitive matches of saved answers against each
// question's correct option. Unanswered questions count as wrong. An empty
// question set is valid and yields a zero percentage.
func Score(questions []model.Question, answers map[string]string, boundaries Boundaries) Result {
	score := 0
	total := len(questions)

	for _, q := range questions {
		if selected, ok := answers[q.ID.String()]; ok && selected == q.Correct {
			score++
		}
	}

	percentage := 0.0
	if total > 0 {
		percentage = round2(float64(score) / float64(total) * 100)
	}

	return Result{
		Score:      score,
		Total:      total,
		Percentage: percentage,
		Grade:      boundaries.GradeFor(percentage),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
