// Package cache is a best-effort validation-result cache on redis, keyed by
// a content hash of the validated snapshot. It is strictly optional: a nil
// Cache, an unreachable server, or a decode failure all read as a miss, and
// validation correctness never depends on it.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"crewplan/internal/domain"
)

const keyPrefix = "crewplan:validation:"

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// New connects a cache client. addr is a redis host:port.
func New(addr string, ttl time.Duration, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
		log: log,
	}
}

// GetResult returns the cached result for a content hash, or a miss.
func (c *Cache) GetResult(ctx context.Context, hash string) (domain.ValidationResult, bool) {
	if c == nil || c.rdb == nil {
		return domain.ValidationResult{}, false
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+hash).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("cache read failed", zap.Error(err))
		}
		return domain.ValidationResult{}, false
	}
	var res domain.ValidationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Debug("cache entry undecodable", zap.Error(err))
		return domain.ValidationResult{}, false
	}
	return res, true
}

// PutResult stores a result under its content hash. Failures are logged and
// swallowed.
func (c *Cache) PutResult(ctx context.Context, hash string, res domain.ValidationResult) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+hash, raw, c.ttl).Err(); err != nil {
		c.log.Debug("cache write failed", zap.Error(err))
	}
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
