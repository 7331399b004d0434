package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name          string
		filter        model.AttemptFilter
		limit, offset int
	}{
		{"defaults", model.AttemptFilter{}, DefaultPerPage, 0},
		{"third page", model.AttemptFilter{Page: 3, PerPage: 10}, 10, 20},
		{"negative page", model.AttemptFilter{Page: -1, PerPage: 5}, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := pageBounds(tt.filter)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

// newTestRepo needs a disposable PostgreSQL database at TEST_DATABASE_URL.
// The quiz_attempts table is migrated up and emptied.
func newTestRepo(t *testing.T) *AttemptRepository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	m, err := migrate.New("file://../../migrations", url)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
	m.Close()

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = pool.Exec(context.Background(), "TRUNCATE quiz_attempts")
	require.NoError(t, err)
	return NewAttemptRepository(pool)
}

func attempt(gen int64, finished time.Time, categories ...string) model.Attempt {
	return model.Attempt{
		SessionID:     uuid.New(),
		Generation:    gen,
		Categories:    categories,
		QuestionMode:  model.QuestionModeMixed,
		QuestionCount: 5,
		Score:         3,
		MaxScore:      5,
		FinishedAt:    finished,
	}
}

func TestAttemptRepositoryList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	batch := []model.Attempt{
		attempt(1, base.Add(-3*time.Minute), "history"),
		attempt(1, base.Add(-2*time.Minute), "history", "biology"),
		attempt(1, base.Add(-time.Minute), "biology"),
	}
	require.NoError(t, repo.BulkInsert(ctx, batch))
	// The same session generation is archived once.
	require.NoError(t, repo.BulkInsert(ctx, batch[:1]))

	all, total, err := repo.List(ctx, model.AttemptFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.True(t, all[0].FinishedAt.After(all[1].FinishedAt), "newest first")

	history, total, err := repo.List(ctx, model.AttemptFilter{Category: "history"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, a := range history {
		assert.Contains(t, a.Categories, "history")
	}

	page, total, err := repo.List(ctx, model.AttemptFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, batch[0].SessionID, page[0].SessionID)

	none, total, err := repo.List(ctx, model.AttemptFilter{Category: "chemistry"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, none)
}

func TestAttemptRepositoryInsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := attempt(2, time.Now().UTC(), "history")
	require.NoError(t, repo.Insert(ctx, &a))
	assert.NotEqual(t, uuid.Nil, a.ID)

	got, total, err := repo.List(ctx, model.AttemptFilter{Category: "history"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, int64(2), got[0].Generation)
}
