package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olexam/portal-backend/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, question_text, options, correct, subject, created_at`

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(&q.ID, &q.Text, &q.Options, &q.Correct, &q.Subject, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// SampleBySubject retrieves up to count random questions for a subject,
// without replacement. May return fewer than requested when the pool is
// short; the caller decides whether that is acceptable.
func (r *QuestionRepository) SampleBySubject(ctx context.Context, subject string, count int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE subject = $1
		 ORDER BY random()
		 LIMIT $2`, subject, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// FetchByIDs retrieves questions by id, keyed by id string. Missing ids are
// simply absent from the map.
func (r *QuestionRepository) FetchByIDs(ctx context.Context, ids []string) (map[string]model.Question, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		parsed = append(parsed, id)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 WHERE id = ANY($1)`, parsed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := make(map[string]model.Question, len(parsed))
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions[q.ID.String()] = *q
	}
	return questions, rows.Err()
}

// Subjects retrieves the distinct subject tags present in the bank.
func (r *QuestionRepository) Subjects(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT subject FROM questions ORDER BY subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// ListPaginated retrieves questions with pagination for the admin screens.
func (r *QuestionRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.Question, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+`
		 FROM questions
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		questions = append(questions, *q)
	}
	return questions, total, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (question_text, options, correct, subject)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		q.Text, q.Options, q.Correct, q.Subject,
	).Scan(&q.ID, &q.CreatedAt)
}

// Delete removes a question by id. Returns false if it did not exist.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Count counts all questions in the bank.
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}
