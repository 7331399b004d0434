package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
)

// ErrArchiveNotMigrated means the attempts table does not exist yet.
var ErrArchiveNotMigrated = errors.New("quiz_attempts table missing, run `migrate up`")

const (
	archiveAppName     = "exstem-quiz"
	archiveIdleTimeout = 5 * time.Minute
	connectTimeout     = 5 * time.Second
)

// NewArchivePool connects to the attempt archive and fails fast when the
// schema has not been migrated. One connection is kept warm for the
// attempt worker.
func NewArchivePool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxDBConns
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = archiveIdleTimeout
	poolCfg.ConnConfig.RuntimeParams["application_name"] = archiveAppName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := checkArchive(pingCtx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", cfg.MaxDBConns).
		Msg("Attempt archive connected")

	return pool, nil
}

func checkArchive(ctx context.Context, pool *pgxpool.Pool) error {
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass('quiz_attempts') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("check archive table: %w", err)
	}
	if !exists {
		return ErrArchiveNotMigrated
	}
	return nil
}
