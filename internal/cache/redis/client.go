package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/worldlines/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetDigest caches a composed digest under its date label.
func (c *Client) SetDigest(ctx context.Context, date string, digest interface{}, ttl time.Duration) error {
	data, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("digest:%s", date), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set digest cache: %w", err)
	}

	logger.Debug("Digest cached", zap.String("date", date), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetDigest(ctx context.Context, date string, digest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("digest:%s", date)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get digest cache: %w", err)
	}

	err = json.Unmarshal(data, digest)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal digest: %w", err)
	}

	logger.Debug("Digest cache hit", zap.String("date", date))
	return true, nil
}

// SetStats caches the aggregate stats snapshot.
func (c *Client) SetStats(ctx context.Context, stats interface{}, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = c.client.Set(ctx, "stats:summary", data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set stats cache: %w", err)
	}

	logger.Debug("Stats cached", zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetStats(ctx context.Context, stats interface{}) (bool, error) {
	data, err := c.client.Get(ctx, "stats:summary").Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get stats cache: %w", err)
	}

	err = json.Unmarshal(data, stats)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	logger.Debug("Stats cache hit")
	return true, nil
}

// InvalidateReadCaches drops digest and stats entries. The pipeline
// calls this after a write cycle so readers never see stale counts
// past one cycle.
func (c *Client) InvalidateReadCaches(ctx context.Context) error {
	for _, pattern := range []string{"digest:*", "stats:*"} {
		iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				logger.Warn("Failed to delete cache key", zap.Error(err))
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to iterate cache keys: %w", err)
		}
	}

	logger.Info("Read caches invalidated")
	return nil
}
