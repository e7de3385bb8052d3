// Package memory is the in-process AuthStore used by -dev mode, where no
// Redis is available. Not suitable for multi-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	expiresAt time.Time
}

type counter struct {
	n         int
	expiresAt time.Time
}

type Client struct {
	mu      sync.Mutex
	revoked map[string]entry
	rates   map[string]counter
}

func New() *Client {
	return &Client{
		revoked: make(map[string]entry),
		rates:   make(map[string]counter),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) RevokeToken(_ context.Context, jti string, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = entry{expiresAt: time.Now().Add(time.Duration(ttlSeconds) * time.Second)}
	return nil
}

func (c *Client) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(c.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (c *Client) AllowRate(_ context.Context, key string, max int, windowSeconds int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cnt, ok := c.rates[key]
	if !ok || now.After(cnt.expiresAt) {
		cnt = counter{expiresAt: now.Add(time.Duration(windowSeconds) * time.Second)}
	}
	cnt.n++
	c.rates[key] = cnt
	return cnt.n <= max, nil
}
