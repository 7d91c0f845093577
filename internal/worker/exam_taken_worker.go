package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olexam/portal-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ExamTakenBatchSize    = 50
	ExamTakenBatchTimeout = 2 * time.Second
	ExamTakenPollTimeout  = 1 * time.Second
)

// ExamTakenWorker consumes submit events from the Redis queue and marks the
// corresponding students as having taken an exam. The flag is informational
// (dashboard and listings), so the queue is allowed to lag behind submits.
type ExamTakenWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewExamTakenWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ExamTakenWorker {
	return &ExamTakenWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "exam_taken_worker").Logger(),
	}
}

type examTakenPayload struct {
	RollNumber string `json:"roll_number"`
}

func (w *ExamTakenWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ExamTakenWorker started")

	batch := make([]*examTakenPayload, 0, ExamTakenBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ExamTakenBatchSize || time.Since(lastFlush) >= ExamTakenBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ExamTakenPollTimeout, config.WorkerKey.ExamTakenQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p examTakenPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			if p.RollNumber == "" {
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *ExamTakenWorker) flushSafe(ctx context.Context, batch []*examTakenPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkMarkTaken(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk exam-taken update failed, using fallback")

		for _, p := range batch {
			if err := w.markSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Str("roll_number", p.RollNumber).Msg("markSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.ExamTakenQueue, raw)
			}
		}
	}
}

func (w *ExamTakenWorker) bulkMarkTaken(ctx context.Context, batch []*examTakenPayload) error {
	rolls := make([]string, 0, len(batch))
	for _, p := range batch {
		rolls = append(rolls, p.RollNumber)
	}

	query := `
		UPDATE students
		SET exam_taken = TRUE
		WHERE roll_number = ANY($1)
		  AND exam_taken = FALSE
	`

	_, err := w.pool.Exec(ctx, query, rolls)
	return err
}

func (w *ExamTakenWorker) markSingle(ctx context.Context, p *examTakenPayload) error {
	_, err := w.pool.Exec(ctx,
		`UPDATE students SET exam_taken = TRUE WHERE roll_number = $1`,
		p.RollNumber,
	)
	return err
}
