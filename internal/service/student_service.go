package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/olexam/portal-backend/internal/model"
	"github.com/olexam/portal-backend/internal/repository"
)

// rollAttempts bounds the retry loop for roll-number collisions.
const rollAttempts = 5

// StudentService handles student registration and identity lookups.
type StudentService struct {
	repo *repository.StudentRepository
	auth *AuthService
}

// NewStudentService creates a new StudentService.
func NewStudentService(repo *repository.StudentRepository, auth *AuthService) *StudentService {
	return &StudentService{repo: repo, auth: auth}
}

// newRollNumber generates a candidate roll number: OL + year + 4 digits.
func newRollNumber() string {
	return fmt.Sprintf("OL%d%04d", time.Now().Year(), rand.Intn(10000))
}

// Register creates a new student account with a unique generated roll
// number. Collisions on the generated number are retried; a duplicate
// email is surfaced as repository.ErrDuplicateEmail.
func (s *StudentService) Register(ctx context.Context, req *model.RegisterStudentRequest) (*model.Student, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	student := &model.Student{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
	}

	for attempt := 0; attempt < rollAttempts; attempt++ {
		student.RollNumber = newRollNumber()
		err = s.repo.Create(ctx, student)
		if errors.Is(err, repository.ErrDuplicateRoll) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return student, nil
	}
	return nil, fmt.Errorf("allocate roll number: %w", err)
}

// Authenticate verifies a student's roll number and password.
func (s *StudentService) Authenticate(ctx context.Context, rollNumber, password string) (*model.Student, error) {
	student, err := s.repo.GetByRoll(ctx, rollNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}

	if err := s.auth.CheckPassword(student.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return student, nil
}

// GetByRoll retrieves a student by roll number.
func (s *StudentService) GetByRoll(ctx context.Context, rollNumber string) (*model.Student, error) {
	return s.repo.GetByRoll(ctx, rollNumber)
}

// List retrieves students with pagination.
func (s *StudentService) List(ctx context.Context, page, perPage int) ([]model.Student, int, error) {
	if page < 1 {
		page = 1
	}
	return s.repo.ListPaginated(ctx, perPage, (page-1)*perPage)
}
