package gateway

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

// Catalog is anything that can list tests.
type Catalog interface {
	ListTests(ctx context.Context) ([]model.TestMetadata, error)
}

// CachedCatalog serves the test catalog from Redis and refreshes it from the
// API after ttl. Cache failures degrade to a direct API call.
type CachedCatalog struct {
	next Catalog
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCachedCatalog wraps next with a Redis read-through cache.
func NewCachedCatalog(next Catalog, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedCatalog {
	return &CachedCatalog{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "catalog_cache").Logger(),
	}
}

// ListTests returns the cached catalog, filling the cache on a miss.
func (c *CachedCatalog) ListTests(ctx context.Context) ([]model.TestMetadata, error) {
	key := config.CacheKey.TestCatalogKey()

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var tests []model.TestMetadata
		if jerr := json.Unmarshal(data, &tests); jerr == nil {
			return tests, nil
		}
		c.log.Warn().Msg("Corrupt catalog cache entry, refetching")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Msg("Catalog cache read failed")
	}

	tests, err := c.next.ListTests(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(tests); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Msg("Catalog cache write failed")
		}
	}
	return tests, nil
}

// Invalidate drops the cached catalog.
func (c *CachedCatalog) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, config.CacheKey.TestCatalogKey()).Err()
}
