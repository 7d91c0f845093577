package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olexam/portal-backend/internal/model"
)

// ErrSessionExists signals that a session already exists for the
// (roll number, subject) key. Callers receive the existing session
// alongside it so they can resume instead of erroring.
var ErrSessionExists = errors.New("exam session already exists")

// ExamSessionRepository owns all exam session persistence. Every mutation
// is a single conditional statement so the create-once and submit-once
// guarantees hold across concurrent requests and server instances.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

const sessionColumns = `roll_number, subject, question_ids, answers, started_at,
	submitted_at, score, total, percentage, grade, status`

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	var ids []uuid.UUID
	err := row.Scan(&s.RollNumber, &s.Subject, &ids, &s.Answers, &s.StartedAt,
		&s.SubmittedAt, &s.Score, &s.Total, &s.Percentage, &s.Grade, &s.Status)
	if err != nil {
		return nil, err
	}
	s.QuestionIDs = make([]string, len(ids))
	for i, id := range ids {
		s.QuestionIDs[i] = id.String()
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	return s, nil
}

// Create atomically inserts a new IN_PROGRESS session with the question-id
// list captured verbatim. If a session already exists for the key, the
// existing session is returned together with ErrSessionExists; the losing
// side of a concurrent create observes the same outcome.
func (r *ExamSessionRepository) Create(ctx context.Context, rollNumber, subject string, questionIDs []string) (*model.ExamSession, error) {
	ids := make([]uuid.UUID, len(questionIDs))
	for i, raw := range questionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	s := &model.ExamSession{
		RollNumber:  rollNumber,
		Subject:     subject,
		QuestionIDs: questionIDs,
		Answers:     map[string]string{},
		Total:       len(questionIDs),
		Status:      model.SessionStatusInProgress,
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (roll_number, subject, question_ids, total)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (roll_number, subject) DO NOTHING
		 RETURNING started_at`,
		rollNumber, subject, ids, len(ids),
	).Scan(&s.StartedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert race or the session predates this call.
		existing, getErr := r.Get(ctx, rollNumber, subject)
		if getErr != nil {
			return nil, getErr
		}
		return existing, ErrSessionExists
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves the session for a (roll number, subject) key.
// Returns pgx.ErrNoRows when absent.
func (r *ExamSessionRepository) Get(ctx context.Context, rollNumber, subject string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE roll_number = $1 AND subject = $2`, rollNumber, subject))
}

// ListByStudent retrieves all of a student's sessions across subjects.
func (r *ExamSessionRepository) ListByStudent(ctx context.Context, rollNumber string) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE roll_number = $1
		 ORDER BY started_at DESC`, rollNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// SaveAnswer upserts a single answer entry. The guard clause only touches
// IN_PROGRESS sessions and only accepts question ids that belong to the
// session's fixed question list. A missing session, a completed session, or
// a foreign question id all leave the row untouched and report success;
// stray late saves after time-out must not surface user-facing errors.
func (r *ExamSessionRepository) SaveAnswer(ctx context.Context, rollNumber, subject, questionID, answer string) error {
	id, err := uuid.Parse(questionID)
	if err != nil {
		// An unparseable id cannot be in any question list: no-op by policy.
		return nil
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET answers = answers || jsonb_build_object($3::text, $4::text)
		 WHERE roll_number = $1 AND subject = $2
		   AND status = 'IN_PROGRESS'
		   AND $5 = ANY(question_ids)`,
		rollNumber, subject, questionID, answer, id)
	return err
}

// Submit transitions a session to COMPLETED with its result fields set.
// The status guard makes the transition one-shot: the second of two
// concurrent submits matches zero rows and reports committed = false,
// leaving the stored result and submit time untouched.
func (r *ExamSessionRepository) Submit(ctx context.Context, rollNumber, subject string, score, total int, percentage float64, grade string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = 'COMPLETED',
		     submitted_at = NOW(),
		     score = $3, total = $4, percentage = $5, grade = $6
		 WHERE roll_number = $1 AND subject = $2
		   AND status = 'IN_PROGRESS'`,
		rollNumber, subject, score, total, percentage, grade)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes a session so a student can retake an exam. Administrative
// reset only; never reachable from the student-facing surface.
func (r *ExamSessionRepository) Delete(ctx context.Context, rollNumber, subject string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM exam_sessions WHERE roll_number = $1 AND subject = $2`,
		rollNumber, subject)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountCompleted counts finished exams across all students.
func (r *ExamSessionRepository) CountCompleted(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE status = 'COMPLETED'`).Scan(&count)
	return count, err
}

// RecentResults retrieves the latest completed exams joined with student
// identity, for the admin dashboard.
func (r *ExamSessionRepository) RecentResults(ctx context.Context, limit int) ([]model.SubjectResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT es.roll_number, st.name, es.subject, es.score, es.total,
		        es.percentage, es.grade, es.submitted_at
		 FROM exam_sessions es
		 JOIN students st ON st.roll_number = es.roll_number
		 WHERE es.status = 'COMPLETED'
		 ORDER BY es.submitted_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.SubjectResult
	for rows.Next() {
		var res model.SubjectResult
		var submittedAt time.Time
		if err := rows.Scan(&res.RollNumber, &res.Name, &res.Subject, &res.Score,
			&res.Total, &res.Percentage, &res.Grade, &submittedAt); err != nil {
			return nil, err
		}
		res.ExamDate = submittedAt
		results = append(results, res)
	}
	return results, rows.Err()
}
