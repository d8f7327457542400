package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache holds the per-date read models. Entries are JSON documents that
// expire on their own and are superseded early by InvalidateDates.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

// GetJSON decodes the value under key. A missing key is not an error.
func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var out T

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, false, err
	}

	return out, true, nil
}

func SetJSON(ctx context.Context, c *Cache, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetOrSetJSON serves key from redis and falls back to loader on a miss.
// Concurrent misses on one key share a single loader call.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if v, ok, err := GetJSON[T](ctx, c, key); err != nil || ok {
		return v, err
	}

	shared, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		_ = SetJSON(ctx, c, key, v, ttl)

		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := shared.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("redis.GetOrSetJSON: unexpected %T for %s", shared, key)
	}

	return v, nil
}

// generationTTL outlives any read model TTL, so a counter that expired
// cannot bring back a cached entry of an older generation.
const generationTTL = 7 * 24 * time.Hour

// Generation returns the current change counter of date, 0 when unset.
// Read models of date are keyed by it: callers read it before loading.
func (c *Cache) Generation(ctx context.Context, date time.Time) (int64, error) {
	gen, err := c.rdb.Get(ctx, KeyDateGeneration(date)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return gen, err
}

// InvalidateDates bumps the generation of every date in dates. Read models
// stored under an older generation are never served again, even when a
// loader that started before the change writes them afterwards.
func (c *Cache) InvalidateDates(ctx context.Context, dates []time.Time) error {
	days := domain.UniqueDays(dates)
	if len(days) == 0 {
		return nil
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, d := range days {
			key := KeyDateGeneration(d)
			pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, generationTTL)
		}
		return nil
	})

	return err
}
