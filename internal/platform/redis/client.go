// Package redis wraps the go-redis client used for the replay-counter read
// view published toward relays.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"acctgate/internal/platform/config"
)

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
}

// New creates a new Redis client from the provided configuration.
// Returns nil if the URL is empty (Redis not configured).
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout.Std() > 0 {
		opts.DialTimeout = cfg.DialTimeout.Std()
	}
	if cfg.ReadTimeout.Std() > 0 {
		opts.ReadTimeout = cfg.ReadTimeout.Std()
	}
	if cfg.WriteTimeout.Std() > 0 {
		opts.WriteTimeout = cfg.WriteTimeout.Std()
	}

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}
