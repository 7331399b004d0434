package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AttemptRepository handles the archive of finished quiz sessions.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// BulkInsert archives a batch of attempts in one statement. Attempts already
// archived for the same session generation are skipped.
func (r *AttemptRepository) BulkInsert(ctx context.Context, batch []model.Attempt) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	ids := make([]uuid.UUID, n)
	sessionIDs := make([]uuid.UUID, n)
	generations := make([]int64, n)
	categories := make([]string, n)
	modes := make([]string, n)
	counts := make([]int, n)
	scores := make([]float64, n)
	maxScores := make([]float64, n)
	times := make([]int, n)
	startedAts := make([]*time.Time, n)
	finishedAts := make([]time.Time, n)

	for i, a := range batch {
		id := a.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		ids[i] = id
		sessionIDs[i] = a.SessionID
		generations[i] = a.Generation
		categories[i] = strings.Join(a.Categories, ",")
		modes[i] = string(a.QuestionMode)
		counts[i] = a.QuestionCount
		scores[i] = a.Score
		maxScores[i] = a.MaxScore
		times[i] = a.TotalTimeSpent
		startedAts[i] = a.StartedAt
		finishedAts[i] = a.FinishedAt
	}

	// Categories travel as comma-joined text since UNNEST flattens
	// multidimensional arrays.
	query := `
		INSERT INTO quiz_attempts (
			id, session_id, generation, categories, question_mode, question_count,
			score, max_score, total_time_spent, started_at, finished_at
		)
		SELECT
			u.id, u.session_id, u.generation, string_to_array(u.categories, ','),
			u.question_mode, u.question_count, u.score, u.max_score,
			u.total_time_spent, u.started_at, u.finished_at
		FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::int8[],
			$4::text[],
			$5::text[],
			$6::int[],
			$7::float8[],
			$8::float8[],
			$9::int[],
			$10::timestamptz[],
			$11::timestamptz[]
		) AS u (
			id, session_id, generation, categories, question_mode, question_count,
			score, max_score, total_time_spent, started_at, finished_at
		)
		ON CONFLICT (session_id, generation) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		ids, sessionIDs, generations, categories, modes, counts,
		scores, maxScores, times, startedAts, finishedAts,
	)
	if err != nil {
		return fmt.Errorf("bulk insert attempts: %w", err)
	}
	return nil
}

// Insert archives a single attempt.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.Attempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (
			id, session_id, generation, categories, question_mode, question_count,
			score, max_score, total_time_spent, started_at, finished_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (session_id, generation) DO NOTHING`,
		a.ID, a.SessionID, a.Generation, a.Categories, string(a.QuestionMode), a.QuestionCount,
		a.Score, a.MaxScore, a.TotalTimeSpent, a.StartedAt, a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// List returns archived attempts, newest first, and the total count.
func (r *AttemptRepository) List(ctx context.Context, f model.AttemptFilter) ([]model.Attempt, int, error) {
	limit, offset := pageBounds(f)

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts
		 WHERE ($1::text = '' OR $1::text = ANY(categories))`, f.Category,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attempts: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, generation, categories, question_mode, question_count,
		        score, max_score, total_time_spent, started_at, finished_at, created_at
		 FROM quiz_attempts
		 WHERE ($1::text = '' OR $1::text = ANY(categories))
		 ORDER BY finished_at DESC
		 LIMIT $2 OFFSET $3`,
		f.Category, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []model.Attempt{}
	for rows.Next() {
		var a model.Attempt
		var mode string
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.Generation, &a.Categories, &mode, &a.QuestionCount,
			&a.Score, &a.MaxScore, &a.TotalTimeSpent, &a.StartedAt, &a.FinishedAt, &a.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan attempt: %w", err)
		}
		a.QuestionMode = model.QuestionMode(mode)
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

// DefaultPerPage is the page size when the filter names none.
const DefaultPerPage = 20

// pageBounds turns a filter's page and page size into LIMIT and OFFSET.
func pageBounds(f model.AttemptFilter) (limit, offset int) {
	limit = f.PerPage
	if limit <= 0 {
		limit = DefaultPerPage
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
