package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// RevokeToken stores the token id under revoked:{jti} until the token would
// have expired anyway; after that the key is useless and may lapse.
func (c *Client) RevokeToken(ctx context.Context, jti string, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	return c.cli.Set(ctx, "revoked:"+jti, "1", time.Duration(ttlSeconds)*time.Second).Err()
}

func (c *Client) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := c.cli.Get(ctx, "revoked:"+jti).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AllowRate counts requests under rate:{key} with INCR + EXPIRE on first hit.
func (c *Client) AllowRate(ctx context.Context, key string, max int, windowSeconds int) (bool, error) {
	k := "rate:" + key
	n, err := c.cli.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, k, time.Duration(windowSeconds)*time.Second)
	}
	return n <= int64(max), nil
}
