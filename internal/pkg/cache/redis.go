package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient returns nil when the server cannot be reached. Callers run
// without a cache in that case.
func NewRedisClient(opts RedisOptions) *redis.Client {
	if opts.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"addr":  opts.Addr,
			"error": err.Error(),
		}).Warn("redis unavailable, caching disabled")
		_ = client.Close()
		return nil
	}
	return client
}

// JSON stores values as JSON documents under a key prefix.
type JSON[T any] struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewJSON[T any](rdb redis.Cmdable, prefix string, ttl time.Duration) *JSON[T] {
	return &JSON[T]{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *JSON[T]) key(id string) string {
	return c.prefix + id
}

// Get reports ok=false on a miss.
func (c *JSON[T]) Get(ctx context.Context, id string) (*T, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, err
	}
	return &v, true, nil
}

func (c *JSON[T]) Set(ctx context.Context, id string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(id), raw, c.ttl).Err()
}

func (c *JSON[T]) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, c.key(id)).Err()
}
