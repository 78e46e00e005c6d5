package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	units "github.com/labstack/gommon/bytes"
	"github.com/redis/go-redis/v9"

	"github.com/ellypaws/macrotune/pkg/logger"
)

type Redis redis.Client

// NewRedis connects to the server described by a redis:// URL and pings it.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis not reachable at %s: %w", options.Addr, err)
	}
	return (*Redis)(client), nil
}

func (r *Redis) Get(ctx context.Context, key string) (*Item, error) {
	var item Item
	err := (*redis.Client)(r).Get(ctx, key).Scan(&item)
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("key %s not found %w", key, err)
	}
	if err != nil {
		return nil, err
	}
	item.Accessed()
	return &item, nil
}

func (r *Redis) Set(ctx context.Context, key string, item *Item, duration time.Duration) error {
	if duration > 0 {
		item.Expires = time.Now().UTC().Add(duration)
	}
	cmd := (*redis.Client)(r).Set(ctx, key, item, duration)
	if cmd.Err() != nil {
		return fmt.Errorf("failed to set item: %w", cmd.Err())
	}
	return nil
}

func (r *Redis) Close() error {
	return (*redis.Client)(r).Close()
}

// Select returns a Redis cache when redisURL is set and reachable, and a
// local cache otherwise.
func Select(ctx context.Context, redisURL string, log logger.Logger) Cache {
	log = logger.OrDiscard(log)
	if redisURL != "" {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		r, err := NewRedis(ctx, redisURL)
		if err == nil {
			log.Infof("redis initialized")
			return r
		}
		log.Warnf("warning: redis not initialized: %v", err)
	}

	log.Infof("using local cache: %d items, %s", DefaultMaxItems, units.Format(DefaultMaxSize))
	return NewLocalCache(DefaultMaxItems, DefaultMaxSize, 0)
}
