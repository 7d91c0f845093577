package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/olexam/portal-backend/internal/config"
	"github.com/olexam/portal-backend/internal/middleware"
	"github.com/olexam/portal-backend/internal/model"
	"github.com/olexam/portal-backend/internal/response"
	"github.com/olexam/portal-backend/internal/service"
	"github.com/olexam/portal-backend/internal/validator"
)

// AdminHandler handles the admin-facing management endpoints.
type AdminHandler struct {
	adminService    *service.AdminService
	studentService  *service.StudentService
	questionService *service.QuestionService
	examService     *service.ExamService
	authService     *service.AuthService
	cfg             *config.Config
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	adminService *service.AdminService,
	studentService *service.StudentService,
	questionService *service.QuestionService,
	examService *service.ExamService,
	authService *service.AuthService,
	cfg *config.Config,
) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		studentService:  studentService,
		questionService: questionService,
		examService:     examService,
		authService:     authService,
		cfg:             cfg,
	}
}

// GetDashboard godoc
// GET /api/v1/admin/dashboard
// Returns summary counts and the latest completed exams.
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	for i := range stats.RecentResults {
		stats.RecentResults[i].Passed = stats.RecentResults[i].Percentage >= h.cfg.PassingMark
	}

	response.Success(c, http.StatusOK, stats)
}

// ListStudents godoc
// GET /api/v1/admin/students
// Lists students with pagination.
func (h *AdminHandler) ListStudents(c *gin.Context) {
	page, perPage := parsePagination(c, h.cfg.StudentsPerPage)

	students, total, err := h.studentService.List(c.Request.Context(), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students},
		buildPagination(page, perPage, total))
}

// GetStudentResults godoc
// GET /api/v1/admin/students/:roll/results
// Returns a student's completed exam results.
func (h *AdminHandler) GetStudentResults(c *gin.Context) {
	roll := c.Param("roll")

	results, err := h.examService.GetResults(c.Request.Context(), roll)
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

// ListQuestions godoc
// GET /api/v1/admin/questions
// Lists questions with pagination. Correct labels are included here; this
// surface is admin-only.
func (h *AdminHandler) ListQuestions(c *gin.Context) {
	page, perPage := parsePagination(c, h.cfg.QuestionsPerPage)

	questions, total, err := h.questionService.List(c.Request.Context(), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"questions": questions},
		buildPagination(page, perPage, total))
}

// AddQuestion godoc
// POST /api/v1/admin/questions
// Adds a question: exactly four options, correct label A through D.
func (h *AdminHandler) AddQuestion(c *gin.Context) {
	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:id
// Removes a question from the bank. Sessions that already reference it keep
// working; the missing question is skipped on resume and scoring.
func (h *AdminHandler) DeleteQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	deleted, err := h.questionService.Delete(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if !deleted {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// ResetExam godoc
// POST /api/v1/admin/exams/reset
// Deletes a (student, subject) session so the exam can be retaken. The call
// is audited with the acting admin's username.
func (h *AdminHandler) ResetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.ResetExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	deleted, err := h.examService.ResetExam(c.Request.Context(), req.RollNumber, req.Subject, claims.Username)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if !deleted {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}

// ResetStudentSession godoc
// POST /api/v1/admin/students/:roll/reset-session
// Clears a student's active login session so they can log in on a new device.
func (h *AdminHandler) ResetStudentSession(c *gin.Context) {
	roll := c.Param("roll")

	if err := h.authService.ResetStudentSession(c.Request.Context(), roll); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student session reset successfully"})
}

func parsePagination(c *gin.Context, defaultPerPage int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = defaultPerPage
	}
	return page, perPage
}

func buildPagination(page, perPage, total int) *response.Pagination {
	totalPages := (total + perPage - 1) / perPage
	return &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
