package storage

import "context"

// AuthStore keeps ephemeral auth state: revoked token ids and rate-limit
// counters. Implementations: redis.Client, memory.Client (for -dev without Redis).
type AuthStore interface {
	// RevokeToken marks a token id as revoked for ttlSeconds.
	RevokeToken(ctx context.Context, jti string, ttlSeconds int) error
	// IsTokenRevoked reports whether a token id has been revoked.
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	// AllowRate increments the counter for key within a windowSeconds window
	// and reports whether the caller is still under max.
	AllowRate(ctx context.Context, key string, max int, windowSeconds int) (bool, error)
	Close() error
}
