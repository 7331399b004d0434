package preference

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// RedisStore keeps a client's preferences in Redis so they follow the
// client across hosted sessions.
type RedisStore struct {
	rdb      *redis.Client
	clientID string
}

// NewRedisStore returns a store scoped to clientID.
func NewRedisStore(rdb *redis.Client, clientID string) *RedisStore {
	return &RedisStore{rdb: rdb, clientID: clientID}
}

// Load returns the stored theme, or "" if none is set.
func (r *RedisStore) Load(ctx context.Context) (model.Theme, error) {
	val, err := r.rdb.Get(ctx, config.CacheKey.ThemeKey(r.clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get theme: %w", err)
	}
	theme := model.Theme(val)
	if err := validate(theme); err != nil {
		return "", err
	}
	return theme, nil
}

// Save stores the theme without expiry.
func (r *RedisStore) Save(ctx context.Context, theme model.Theme) error {
	if err := validate(theme); err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, config.CacheKey.ThemeKey(r.clientID), string(theme), 0).Err(); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	return nil
}
