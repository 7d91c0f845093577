package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olexam/portal-backend/internal/model"
)

// Duplicate-key errors surfaced from unique constraints.
var (
	ErrDuplicateEmail = errors.New("student with this email already exists")
	ErrDuplicateRoll  = errors.New("student with this roll number already exists")
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `id, roll_number, name, email, phone, password_hash, exam_taken, created_at`

// GetByRoll retrieves a student by their unique roll number.
func (r *StudentRepository) GetByRoll(ctx context.Context, rollNumber string) (*model.Student, error) {
	s := &model.Student{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE roll_number = $1`, rollNumber,
	).Scan(&s.ID, &s.RollNumber, &s.Name, &s.Email, &s.Phone, &s.PasswordHash, &s.ExamTaken, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new student. Unique violations are translated so the
// caller can retry roll-number generation or reject a duplicate email.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (roll_number, name, email, phone, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.RollNumber, s.Name, s.Email, s.Phone, s.PasswordHash,
	).Scan(&s.ID, &s.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "students_roll_number_key" {
				return ErrDuplicateRoll
			}
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// ListPaginated retrieves students with pagination, newest first.
func (r *StudentRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.Student, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+studentColumns+`
		 FROM students
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.ID, &s.RollNumber, &s.Name, &s.Email, &s.Phone,
			&s.PasswordHash, &s.ExamTaken, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		students = append(students, s)
	}
	return students, total, rows.Err()
}

// RecomputeExamTaken rederives the exam_taken flag from the student's
// completed sessions. Used after an administrative reset.
func (r *StudentRepository) RecomputeExamTaken(ctx context.Context, rollNumber string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE students
		 SET exam_taken = EXISTS (
			SELECT 1 FROM exam_sessions
			WHERE roll_number = $1 AND status = 'COMPLETED'
		 )
		 WHERE roll_number = $1`, rollNumber)
	return err
}

// Count counts all registered students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&count)
	return count, err
}
