package grading

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/olexam/portal-backend/internal/model"
)

func makeQuestions(n int) []model.Question {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:      uuid.New(),
			Text:    fmt.Sprintf("question %d", i+1),
			Options: []string{"opt a", "opt b", "opt c", "opt d"},
			Correct: "B",
			Subject: "Computer Science",
		}
	}
	return questions
}

func answerFirst(questions []model.Question, n int, option string) map[string]string {
	answers := make(map[string]string, n)
	for i := 0; i < n && i < len(questions); i++ {
		answers[questions[i].ID.String()] = option
	}
	return answers
}

func TestScore(t *testing.T) {
	questions := makeQuestions(20)

	tests := []struct {
		name       string
		answers    map[string]string
		score      int
		percentage float64
		grade      string
	}{
		{name: "all correct", answers: answerFirst(questions, 20, "B"), score: 20, percentage: 100, grade: "A+"},
		{name: "fifteen of twenty correct", answers: answerFirst(questions, 15, "B"), score: 15, percentage: 75, grade: "B"},
		{name: "all wrong", answers: answerFirst(questions, 20, "A"), score: 0, percentage: 0, grade: "F"},
		{name: "no answers", answers: map[string]string{}, score: 0, percentage: 0, grade: "F"},
		{name: "nil answers", answers: nil, score: 0, percentage: 0, grade: "F"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(questions, tc.answers, DefaultBoundaries)
			if got.Score != tc.score || got.Total != 20 || got.Percentage != tc.percentage || got.Grade != tc.grade {
				t.Fatalf("Score() = %+v, want score=%d total=20 percentage=%.2f grade=%s",
					got, tc.score, tc.percentage, tc.grade)
			}
		})
	}
}

func TestScoreMatchIsCaseSensitive(t *testing.T) {
	questions := makeQuestions(1)
	got := Score(questions, map[string]string{questions[0].ID.String(): "b"}, DefaultBoundaries)
	if got.Score != 0 {
		t.Fatalf("lowercase answer matched uppercase key: %+v", got)
	}
}

func TestScoreIgnoresUnknownQuestionIDs(t *testing.T) {
	questions := makeQuestions(4)
	answers := answerFirst(questions, 2, "B")
	answers[uuid.NewString()] = "B" // not part of the question set

	got := Score(questions, answers, DefaultBoundaries)
	if got.Score != 2 || got.Total != 4 {
		t.Fatalf("Score() = %+v, want score=2 total=4", got)
	}
}

func TestScoreEmptyQuestionSet(t *testing.T) {
	got := Score(nil, map[string]string{"x": "A"}, DefaultBoundaries)
	if got.Score != 0 || got.Total != 0 || got.Percentage != 0 || got.Grade != "F" {
		t.Fatalf("Score(nil) = %+v, want zero result with grade F", got)
	}
}

func TestScorePercentageRounding(t *testing.T) {
	questions := makeQuestions(3)
	got := Score(questions, answerFirst(questions, 1, "B"), DefaultBoundaries)
	if got.Percentage != 33.33 {
		t.Fatalf("percentage = %v, want 33.33", got.Percentage)
	}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	questions := makeQuestions(7)
	answers := answerFirst(questions, 5, "B")

	first := Score(questions, answers, DefaultBoundaries)
	for i := 0; i < 10; i++ {
		got := Score(questions, answers, DefaultBoundaries)
		if got != first {
			t.Fatalf("non-deterministic result: %+v vs %+v", got, first)
		}
		if got.Score < 0 || got.Score > got.Total {
			t.Fatalf("score out of bounds: %+v", got)
		}
	}
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		percentage float64
		grade      string
	}{
		{100, "A+"}, {90, "A+"}, {89.99, "A"}, {80, "A"},
		{75, "B"}, {70, "B"}, {60, "C"}, {50, "D"},
		{40, "E"}, {39.99, "F"}, {0, "F"},
	}
	for _, tc := range tests {
		if got := DefaultBoundaries.GradeFor(tc.percentage); got != tc.grade {
			t.Errorf("GradeFor(%v) = %s, want %s", tc.percentage, got, tc.grade)
		}
	}
}

// Grade assignment must be monotonic: a higher percentage never yields a
// lower grade under the ordered default table.
func TestGradeForMonotonic(t *testing.T) {
	rank := func(grade string) int {
		for i, b := range DefaultBoundaries {
			if b.Grade == grade {
				return len(DefaultBoundaries) - i
			}
		}
		return 0
	}

	prev := -1
	for pct := 0.0; pct <= 100.0; pct += 0.25 {
		r := rank(DefaultBoundaries.GradeFor(pct))
		if r < prev {
			t.Fatalf("grade rank decreased at %.2f%%", pct)
		}
		prev = r
	}
}
