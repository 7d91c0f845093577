package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/olexam/portal-backend/internal/config"
	"github.com/olexam/portal-backend/internal/model"
	"github.com/olexam/portal-backend/internal/repository"
	"github.com/rs/zerolog"
)

// AdminService handles admin authentication, bootstrap, and dashboard data.
type AdminService struct {
	adminRepo    *repository.AdminRepository
	studentRepo  *repository.StudentRepository
	questionRepo *repository.QuestionRepository
	sessionRepo  *repository.ExamSessionRepository
	auth         *AuthService
	log          zerolog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	adminRepo *repository.AdminRepository,
	studentRepo *repository.StudentRepository,
	questionRepo *repository.QuestionRepository,
	sessionRepo *repository.ExamSessionRepository,
	auth *AuthService,
	log zerolog.Logger,
) *AdminService {
	return &AdminService{
		adminRepo:    adminRepo,
		studentRepo:  studentRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		auth:         auth,
		log:          log.With().Str("component", "admin_service").Logger(),
	}
}

// Authenticate verifies an admin's username and password.
func (s *AdminService) Authenticate(ctx context.Context, username, password string) (*model.Admin, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}

	if err := s.auth.CheckPassword(admin.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return admin, nil
}

// EnsureDefaultAdmin creates the default admin account when no admin
// exists. Runs once during service startup, outside the request path;
// a second invocation is a no-op.
func (s *AdminService) EnsureDefaultAdmin(ctx context.Context, cfg *config.Config) error {
	count, err := s.adminRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := s.auth.HashPassword(cfg.DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin := &model.Admin{
		Username:     cfg.DefaultAdminUsername,
		Role:         "admin",
		PasswordHash: hash,
	}
	if err := s.adminRepo.Create(ctx, admin); errors.Is(err, repository.ErrDuplicateUsername) {
		// Another instance bootstrapped first.
		return nil
	} else if err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	s.log.Info().Str("username", admin.Username).Msg("default admin created")
	return nil
}

// DashboardStats aggregates the admin dashboard counters and recent results.
type DashboardStats struct {
	TotalStudents  int                   `json:"total_students"`
	TotalExams     int                   `json:"total_exams"`
	TotalQuestions int                   `json:"total_questions"`
	RecentResults  []model.SubjectResult `json:"recent_results"`
}

// GetDashboardStats collects summary counts and the latest completed exams.
func (s *AdminService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	totalStudents, err := s.studentRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	totalExams, err := s.sessionRepo.CountCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("count exams: %w", err)
	}
	totalQuestions, err := s.questionRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	recent, err := s.sessionRepo.RecentResults(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}

	return &DashboardStats{
		TotalStudents:  totalStudents,
		TotalExams:     totalExams,
		TotalQuestions: totalQuestions,
		RecentResults:  recent,
	}, nil
}
