package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AttemptLister reads the attempt archive.
type AttemptLister interface {
	List(ctx context.Context, f model.AttemptFilter) ([]model.Attempt, int, error)
}

// AttemptService queues finished attempts and lists the archive.
type AttemptService struct {
	repo AttemptLister
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(repo AttemptLister, rdb *redis.Client, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "attempt_service").Logger(),
	}
}

// Enqueue pushes an attempt onto the archive queue drained by the
// attempt worker.
func (s *AttemptService) Enqueue(ctx context.Context, a model.Attempt) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw).Err(); err != nil {
		return fmt.Errorf("queue attempt: %w", err)
	}
	s.log.Debug().
		Str("session_id", a.SessionID.String()).
		Float64("score", a.Score).
		Float64("max_score", a.MaxScore).
		Msg("Attempt queued")
	return nil
}

// List returns a page of archived attempts and the total count.
func (s *AttemptService) List(ctx context.Context, f model.AttemptFilter) ([]model.Attempt, int, error) {
	return s.repo.List(ctx, f)
}

// QueueLength is the number of attempts waiting to be archived.
func (s *AttemptService) QueueLength(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, config.WorkerKey.PersistAttemptsQueue).Result()
}
