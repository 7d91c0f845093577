package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/olexam/portal-backend/internal/config"
	"github.com/olexam/portal-backend/internal/handler"
	"github.com/olexam/portal-backend/internal/middleware"
	"github.com/olexam/portal-backend/internal/response"
	"github.com/olexam/portal-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth  *handler.AuthHandler
	Exam  *handler.ExamHandler
	Admin *handler.AdminHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Public subject listing for the landing page.
	router.GET("/api/v1/subjects", handlers.Exam.ListSubjects)

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/register", handlers.Auth.RegisterStudent)
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
	}

	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/me", handlers.Auth.GetStudentProfile)
		studentAPI.POST("/exam/:subject/start", handlers.Exam.StartExam)
		studentAPI.POST("/exam/:subject/answer", handlers.Exam.SaveAnswer)
		studentAPI.POST("/exam/:subject/submit", handlers.Exam.SubmitExam)
		studentAPI.GET("/results", handlers.Exam.MyResults)
	}

	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/me", handlers.Auth.GetAdminProfile)
		adminAPI.GET("/dashboard", handlers.Admin.GetDashboard)

		adminAPI.GET("/students", handlers.Admin.ListStudents)
		adminAPI.GET("/students/:roll/results", handlers.Admin.GetStudentResults)
		adminAPI.POST("/students/:roll/reset-session", handlers.Admin.ResetStudentSession)

		adminAPI.GET("/questions", handlers.Admin.ListQuestions)
		adminAPI.POST("/questions", handlers.Admin.AddQuestion)
		adminAPI.DELETE("/questions/:id", handlers.Admin.DeleteQuestion)

		adminAPI.POST("/exams/reset", handlers.Admin.ResetExam)
	}

	return router
}
