package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second
)

// AttemptWriter persists archived attempts.
type AttemptWriter interface {
	BulkInsert(ctx context.Context, batch []model.Attempt) error
	Insert(ctx context.Context, a *model.Attempt) error
}

// AttemptWorker drains the attempt queue into PostgreSQL in batches.
type AttemptWorker struct {
	repo AttemptWriter
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewAttemptWorker(repo AttemptWriter, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "attempt_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]model.Attempt, 0, AttemptBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AttemptBatchSize || time.Since(lastFlush) >= AttemptBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, AttemptPollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var a model.Attempt
			if err := json.Unmarshal([]byte(item[1]), &a); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, a)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

// flushSafe writes a batch. If the bulk statement fails each attempt is
// retried alone, and the ones that still fail go back on the queue.
func (w *AttemptWorker) flushSafe(ctx context.Context, batch []model.Attempt) {
	if len(batch) == 0 {
		return
	}

	err := w.repo.BulkInsert(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Attempts archived")
		return
	}
	w.log.Warn().Err(err).Msg("bulk attempt insert failed, using fallback")

	for i := range batch {
		a := batch[i]
		if err := w.repo.Insert(ctx, &a); err != nil {
			w.log.Error().Err(err).Str("session_id", a.SessionID.String()).Msg("single insert failed, requeueing")
			w.requeue(ctx, a)
		}
	}
}

func (w *AttemptWorker) requeue(ctx context.Context, a model.Attempt) {
	if w.rdb == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw)
}
