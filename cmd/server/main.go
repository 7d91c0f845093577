package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olexam/portal-backend/internal/config"
	"github.com/olexam/portal-backend/internal/database"
	"github.com/olexam/portal-backend/internal/handler"
	"github.com/olexam/portal-backend/internal/logger"
	"github.com/olexam/portal-backend/internal/repository"
	"github.com/olexam/portal-backend/internal/router"
	"github.com/olexam/portal-backend/internal/service"
	"github.com/olexam/portal-backend/internal/validator"
	"github.com/olexam/portal-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting OLExam Portal Backend")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)

	authService := service.NewAuthService(cfg, rdb)
	studentService := service.NewStudentService(studentRepo, authService)
	adminService := service.NewAdminService(adminRepo, studentRepo, questionRepo, sessionRepo, authService, log)
	questionService := service.NewQuestionService(questionRepo)
	examService := service.NewExamService(sessionRepo, questionRepo, studentRepo, rdb, cfg, log)

	// Ensure a usable admin account exists before accepting traffic.
	if err := adminService.EnsureDefaultAdmin(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap default admin")
	}

	handlers := &router.Handlers{
		Auth:  handler.NewAuthHandler(authService, studentService, adminService),
		Exam:  handler.NewExamHandler(examService),
		Admin: handler.NewAdminHandler(adminService, studentService, questionService, examService, authService, cfg),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	examTakenWorker := worker.NewExamTakenWorker(pool, rdb, log)
	go examTakenWorker.Start(workerCtx)

	r := router.SetupRouter(authService, handlers, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Stop the worker and give it a moment to drain its queue.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
