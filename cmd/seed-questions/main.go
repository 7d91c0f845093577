package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/olexam/portal-backend/internal/config"
	"github.com/olexam/portal-backend/internal/database"
	"github.com/olexam/portal-backend/internal/logger"
	"github.com/olexam/portal-backend/internal/model"
	"github.com/olexam/portal-backend/internal/repository"
)

// questionsPerSubject leaves headroom above TOTAL_QUESTIONS so sampling
// actually varies between sessions.
const questionsPerSubject = 30

var subjects = []string{
	"Mathematics",
	"Physics",
	"Chemistry",
	"Biology",
	"English",
	"Computer Science",
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	fmt.Printf("=== Seeding %d questions per subject ===\n", questionsPerSubject)

	successCount := 0
	for _, subject := range subjects {
		for i := 1; i <= questionsPerSubject; i++ {
			correct := model.OptionLabels[rand.Intn(len(model.OptionLabels))]

			q := &model.Question{
				Text: fmt.Sprintf("[%s] Practice question %d: which option is correct?", subject, i),
				Options: []string{
					fmt.Sprintf("%s option A for question %d", subject, i),
					fmt.Sprintf("%s option B for question %d", subject, i),
					fmt.Sprintf("%s option C for question %d", subject, i),
					fmt.Sprintf("%s option D for question %d", subject, i),
				},
				Correct: correct,
				Subject: subject,
			}

			if err := questionRepo.Create(ctx, q); err != nil {
				log.Error().Err(err).Str("subject", subject).Int("index", i).Msg("Failed to seed question")
				continue
			}
			successCount++
		}
		fmt.Printf("Seeded %s\n", subject)
	}

	fmt.Printf("\nDone. %d questions created across %d subjects.\n", successCount, len(subjects))
}
