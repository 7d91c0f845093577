package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/olexam/portal-backend/internal/middleware"
	"github.com/olexam/portal-backend/internal/model"
	"github.com/olexam/portal-backend/internal/response"
	"github.com/olexam/portal-backend/internal/service"
	"github.com/olexam/portal-backend/internal/validator"
)

// ExamHandler handles the student-facing exam lifecycle endpoints.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// ListSubjects godoc
// GET /api/v1/subjects
// Returns the subjects currently available in the question bank.
func (h *ExamHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.examService.Subjects(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"subjects": subjects})
}

// StartExam godoc
// POST /api/v1/student/exam/:subject/start
// Starts a new exam session for the subject, or resumes the existing one.
func (h *ExamHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	subject := strings.TrimSpace(c.Param("subject"))
	if subject == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	paper, err := h.examService.StartExam(c.Request.Context(), claims.RollNumber, subject)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamCompleted):
			response.Fail(c, http.StatusConflict, response.ErrExamCompleted)
		case errors.Is(err, service.ErrInsufficientQuestions):
			response.Fail(c, http.StatusConflict, response.ErrInsufficientQuestions)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// SaveAnswer godoc
// POST /api/v1/student/exam/:subject/answer
// Records a single answer. Saving against a missing or completed session is
// accepted and dropped, so a stale tab never surfaces an error mid-exam.
func (h *ExamHandler) SaveAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	subject := strings.TrimSpace(c.Param("subject"))
	if subject == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.examService.SaveAnswer(c.Request.Context(), claims.RollNumber, subject, req.QuestionID, req.Answer)
	if err != nil {
		if errors.Is(err, service.ErrMissingAnswerInput) {
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// SubmitExam godoc
// POST /api/v1/student/exam/:subject/submit
// Scores and finalizes the session. Repeat submits return a conflict and the
// first result stands.
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	subject := strings.TrimSpace(c.Param("subject"))
	if subject == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	result, err := h.examService.SubmitExam(c.Request.Context(), claims.RollNumber, subject)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		case errors.Is(err, service.ErrExamCompleted):
			response.Fail(c, http.StatusConflict, response.ErrExamCompleted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// MyResults godoc
// GET /api/v1/student/results
// Returns the authenticated student's completed exam results.
func (h *ExamHandler) MyResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	results, err := h.examService.GetResults(c.Request.Context(), claims.RollNumber)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}
