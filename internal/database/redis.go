package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
)

// Redis roles, reported as the connection's client name.
const (
	RoleHost   = "host"
	RoleClient = "client"
)

// NewRedisClient connects to the Redis holding session tokens, the test
// catalog cache, the attempt queue and theme preferences. role names the
// process in CLIENT LIST.
func NewRedisClient(ctx context.Context, cfg *config.Config, role string, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opt.ClientName = "exstem-quiz-" + role

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Str("role", role).
		Msg("Redis connected")

	return rdb, nil
}
