package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/olexam/portal-backend/internal/config"
	"github.com/olexam/portal-backend/internal/grading"
	"github.com/olexam/portal-backend/internal/model"
	"github.com/olexam/portal-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exam lifecycle errors.
var (
	ErrExamCompleted         = errors.New("exam already completed for this subject")
	ErrExamNotFound          = errors.New("no exam session found")
	ErrStudentNotFound       = errors.New("student not found")
	ErrInsufficientQuestions = errors.New("not enough questions for subject")
	ErrMissingAnswerInput    = errors.New("question id and answer are required")
)

// SessionStore is the persistence boundary for exam sessions. All mutations
// are atomic conditional writes in the backing store; see the repository
// implementation for the concurrency contract.
type SessionStore interface {
	Create(ctx context.Context, rollNumber, subject string, questionIDs []string) (*model.ExamSession, error)
	Get(ctx context.Context, rollNumber, subject string) (*model.ExamSession, error)
	ListByStudent(ctx context.Context, rollNumber string) ([]model.ExamSession, error)
	SaveAnswer(ctx context.Context, rollNumber, subject, questionID, answer string) error
	Submit(ctx context.Context, rollNumber, subject string, score, total int, percentage float64, grade string) (bool, error)
	Delete(ctx context.Context, rollNumber, subject string) (bool, error)
}

// QuestionBank supplies subject-scoped random sampling and id lookup.
type QuestionBank interface {
	SampleBySubject(ctx context.Context, subject string, count int) ([]model.Question, error)
	FetchByIDs(ctx context.Context, ids []string) (map[string]model.Question, error)
	Subjects(ctx context.Context) ([]string, error)
}

// StudentDirectory is the slice of the identity store the exam flow needs.
type StudentDirectory interface {
	GetByRoll(ctx context.Context, rollNumber string) (*model.Student, error)
	RecomputeExamTaken(ctx context.Context, rollNumber string) error
}

// ExamService orchestrates the exam session lifecycle: start/resume,
// answer accumulation, one-shot submission, and result listing.
type ExamService struct {
	store      SessionStore
	bank       QuestionBank
	students   StudentDirectory
	rdb        *redis.Client
	cfg        *config.Config
	boundaries grading.Boundaries
	log        zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	store SessionStore,
	bank QuestionBank,
	students StudentDirectory,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		store:      store,
		bank:       bank,
		students:   students,
		rdb:        rdb,
		cfg:        cfg,
		boundaries: grading.DefaultBoundaries,
		log:        log.With().Str("component", "exam_service").Logger(),
	}
}

// StartExam starts a new exam session for the (student, subject) key, or
// resumes the existing one. Resuming returns the original question order
// and the accumulated answers, and never resets the timer.
func (s *ExamService) StartExam(ctx context.Context, rollNumber, subject string) (*model.ExamPaper, error) {
	sess, err := s.store.Get(ctx, rollNumber, subject)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if sess != nil {
		if sess.Status == model.SessionStatusCompleted {
			return nil, ErrExamCompleted
		}
		return s.resumePaper(ctx, sess)
	}

	questions, err := s.bank.SampleBySubject(ctx, subject, s.cfg.TotalQuestions)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	if len(questions) < s.cfg.TotalQuestions {
		return nil, fmt.Errorf("subject %q has %d of %d required questions: %w",
			subject, len(questions), s.cfg.TotalQuestions, ErrInsufficientQuestions)
	}

	ids := make([]string, len(questions))
	views := make([]model.QuestionView, len(questions))
	for i, q := range questions {
		ids[i] = q.ID.String()
		views[i] = q.View()
	}

	created, err := s.store.Create(ctx, rollNumber, subject, ids)
	if errors.Is(err, repository.ErrSessionExists) {
		// Lost a concurrent start for the same key: fall through to the
		// winner's session so both tabs see identical state.
		if created.Status == model.SessionStatusCompleted {
			return nil, ErrExamCompleted
		}
		return s.resumePaper(ctx, created)
	}
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.cacheStartTime(ctx, rollNumber, subject, created.StartedAt)

	s.log.Info().
		Str("roll_number", rollNumber).
		Str("subject", subject).
		Int("questions", len(ids)).
		Msg("exam session created")

	return &model.ExamPaper{
		Subject:          subject,
		Questions:        views,
		RemainingSeconds: s.cfg.ExamDurationMinutes * 60,
		SavedAnswers:     map[string]string{},
	}, nil
}

// resumePaper rebuilds the display payload for an in-progress session:
// the original question list re-fetched by id in creation order, the saved
// answers, and the remaining time derived from the stored start time.
func (s *ExamService) resumePaper(ctx context.Context, sess *model.ExamSession) (*model.ExamPaper, error) {
	questionMap, err := s.bank.FetchByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}

	views := make([]model.QuestionView, 0, len(sess.QuestionIDs))
	for _, id := range sess.QuestionIDs {
		if q, ok := questionMap[id]; ok {
			views = append(views, q.View())
		}
	}

	return &model.ExamPaper{
		Subject:          sess.Subject,
		Questions:        views,
		RemainingSeconds: s.remainingSeconds(s.startTime(ctx, sess)),
		SavedAnswers:     sess.Answers,
	}, nil
}

func (s *ExamService) remainingSeconds(startedAt time.Time) int {
	remaining := s.cfg.ExamDurationMinutes*60 - int(time.Since(startedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// startTime reads the session start time through the Redis cache, with the
// database row as fallback. A cache miss repopulates the key.
func (s *ExamService) startTime(ctx context.Context, sess *model.ExamSession) time.Time {
	key := config.CacheKey.ExamStartKey(sess.RollNumber, sess.Subject)
	if unix, err := s.rdb.Get(ctx, key).Int64(); err == nil {
		return time.Unix(unix, 0)
	}
	s.cacheStartTime(ctx, sess.RollNumber, sess.Subject, sess.StartedAt)
	return sess.StartedAt
}

func (s *ExamService) cacheStartTime(ctx context.Context, rollNumber, subject string, startedAt time.Time) {
	key := config.CacheKey.ExamStartKey(rollNumber, subject)
	ttl := time.Duration(s.cfg.ExamDurationMinutes+30) * time.Minute
	if err := s.rdb.Set(ctx, key, startedAt.Unix(), ttl).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("roll_number", rollNumber).
			Str("subject", subject).
			Msg("failed to cache session start time")
	}
}

// SaveAnswer persists a single answer. Malformed input is rejected before
// the store is touched; a save against a missing or completed session is a
// silent no-op at the store layer.
func (s *ExamService) SaveAnswer(ctx context.Context, rollNumber, subject, questionID, answer string) error {
	if strings.TrimSpace(questionID) == "" || strings.TrimSpace(answer) == "" {
		return ErrMissingAnswerInput
	}
	if err := s.store.SaveAnswer(ctx, rollNumber, subject, questionID, answer); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// SubmitExam scores the session's current answers and finalizes it exactly
// once. Partial answer sets are scored, not rejected; unanswered questions
// count as wrong. Elapsed time is not re-validated here, the client timer
// drives auto-submit at zero remaining.
func (s *ExamService) SubmitExam(ctx context.Context, rollNumber, subject string) (*grading.Result, error) {
	sess, err := s.store.Get(ctx, rollNumber, subject)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Status == model.SessionStatusCompleted {
		return nil, ErrExamCompleted
	}

	questionMap, err := s.bank.FetchByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	questions := make([]model.Question, 0, len(sess.QuestionIDs))
	for _, id := range sess.QuestionIDs {
		if q, ok := questionMap[id]; ok {
			questions = append(questions, q)
		}
	}

	result := grading.Score(questions, sess.Answers, s.boundaries)

	committed, err := s.store.Submit(ctx, rollNumber, subject,
		result.Score, result.Total, result.Percentage, result.Grade)
	if err != nil {
		return nil, fmt.Errorf("submit session: %w", err)
	}
	if !committed {
		// A concurrent submit won; the stored result stands.
		return nil, ErrExamCompleted
	}

	s.queueExamTakenFlag(ctx, rollNumber)

	s.log.Info().
		Str("roll_number", rollNumber).
		Str("subject", subject).
		Int("score", result.Score).
		Float64("percentage", result.Percentage).
		Str("grade", result.Grade).
		Msg("exam submitted")

	return &result, nil
}

// queueExamTakenFlag enqueues the student flag update for the background
// worker. Fire-and-forget: a queue failure never rolls back the submit.
func (s *ExamService) queueExamTakenFlag(ctx context.Context, rollNumber string) {
	payload, _ := json.Marshal(struct {
		RollNumber string `json:"roll_number"`
	}{rollNumber})

	if err := s.rdb.RPush(ctx, config.WorkerKey.ExamTakenQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("roll_number", rollNumber).
			Msg("failed to queue exam-taken flag")
	}
}

// GetResults returns the completed exam results for a student across
// subjects, with the PASS/FAIL display label applied. In-progress sessions
// are filtered out.
func (s *ExamService) GetResults(ctx context.Context, rollNumber string) ([]model.SubjectResult, error) {
	student, err := s.students.GetByRoll(ctx, rollNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	sessions, err := s.store.ListByStudent(ctx, rollNumber)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	results := make([]model.SubjectResult, 0, len(sessions))
	for _, sess := range sessions {
		if sess.Status != model.SessionStatusCompleted {
			continue
		}
		results = append(results, model.SubjectResult{
			RollNumber: rollNumber,
			Name:       student.Name,
			Subject:    sess.Subject,
			Score:      *sess.Score,
			Total:      sess.Total,
			Percentage: *sess.Percentage,
			Grade:      *sess.Grade,
			Passed:     *sess.Percentage >= s.cfg.PassingMark,
			ExamDate:   *sess.SubmittedAt,
		})
	}
	return results, nil
}

// Subjects lists the subjects currently available in the question bank.
func (s *ExamService) Subjects(ctx context.Context) ([]string, error) {
	return s.bank.Subjects(ctx)
}

// ResetExam deletes a session so the student can retake the subject. The
// one-session-per-subject rule does not apply here, so every call is audited.
func (s *ExamService) ResetExam(ctx context.Context, rollNumber, subject, actor string) (bool, error) {
	deleted, err := s.store.Delete(ctx, rollNumber, subject)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}

	if err := s.rdb.Del(ctx, config.CacheKey.ExamStartKey(rollNumber, subject)).Err(); err != nil {
		s.log.Warn().Err(err).
			Str("roll_number", rollNumber).
			Str("subject", subject).
			Msg("failed to clear session start cache")
	}

	if deleted {
		if err := s.students.RecomputeExamTaken(ctx, rollNumber); err != nil {
			s.log.Warn().Err(err).
				Str("roll_number", rollNumber).
				Msg("failed to recompute exam-taken flag")
		}
	}

	s.log.Info().
		Str("actor", actor).
		Str("roll_number", rollNumber).
		Str("subject", subject).
		Bool("deleted", deleted).
		Msg("administrative exam reset")

	return deleted, nil
}
