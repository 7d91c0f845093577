package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/olexam/portal-backend/internal/model"
	"github.com/olexam/portal-backend/internal/repository"
)

// QuestionService handles the admin-facing question bank operations.
type QuestionService struct {
	repo *repository.QuestionRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(repo *repository.QuestionRepository) *QuestionService {
	return &QuestionService{repo: repo}
}

// Add inserts a new question into the bank.
func (s *QuestionService) Add(ctx context.Context, req *model.AddQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		Text:    req.Text,
		Options: req.Options,
		Correct: req.Correct,
		Subject: req.Subject,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes a question by id. Returns false when the id is unknown.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.Delete(ctx, id)
}

// List retrieves questions with pagination, including the correct option.
// This surface is admin-only.
func (s *QuestionService) List(ctx context.Context, page, perPage int) ([]model.Question, int, error) {
	if page < 1 {
		page = 1
	}
	return s.repo.ListPaginated(ctx, perPage, (page-1)*perPage)
}
