package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/rowlog"
)

// Redis stores and announces rows in Redis.
type Redis struct {
	client redis.Cmdable
	prefix string
	recent int64
	closer func() error
}

// NewRedis connects to the configured server and verifies it with PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password(),
		DB:         cfg.DB,
		MaxRetries: 3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("publish: redis ping %s: %w", cfg.Addr, err)
	}
	r := newRedis(client, cfg.Prefix, cfg.Recent)
	r.closer = client.Close
	return r, nil
}

func newRedis(client redis.Cmdable, prefix string, recent int) *Redis {
	if recent <= 0 {
		recent = 1
	}
	return &Redis{client: client, prefix: prefix, recent: int64(recent)}
}

// Keys used by the publisher.
func (r *Redis) latestKey() string   { return r.prefix + ":latest" }
func (r *Redis) recentKey() string   { return r.prefix + ":recent" }
func (r *Redis) rowsChannel() string { return r.prefix + ":rows" }

// Log implements rowlog.Logger.
func (r *Redis) Log(ctx context.Context, row rowlog.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("publish: marshal row: %w", err)
	}

	// One MULTI/EXEC so a retried row never lands in the recent list twice.
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.latestKey(), data, 0)
		pipe.LPush(ctx, r.recentKey(), data)
		pipe.LTrim(ctx, r.recentKey(), 0, r.recent-1)
		pipe.Publish(ctx, r.rowsChannel(), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish: redis write row: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
