// Package auth verifies bearer credentials issued by the external identity
// service. Tokens are HS256 JWTs; revocation is tracked in the auth store so
// a logout propagates before expiry.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/teamhub/internal/config"
	"github.com/teamhub/internal/storage"
)

var ErrInvalidToken = errors.New("invalid token")

type Verifier struct {
	secret []byte
	issuer string
	store  storage.AuthStore
}

func NewVerifier(cfg config.AuthConfig, store storage.AuthStore) *Verifier {
	return &Verifier{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, store: store}
}

type claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Verify validates credential and returns the stable user id. Any failure
// (bad signature, expiry, wrong issuer, revoked id, store error) yields
// ErrInvalidToken: a connection must never be half-trusted.
func (v *Verifier) Verify(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrInvalidToken
	}
	var c claims
	token, err := jwt.ParseWithClaims(credential, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}
	if c.ID != "" {
		revoked, err := v.store.IsTokenRevoked(ctx, c.ID)
		if err != nil || revoked {
			return "", ErrInvalidToken
		}
	}
	return c.Subject, nil
}

// Revoke invalidates the token id until its natural expiry.
func (v *Verifier) Revoke(ctx context.Context, credential string) error {
	var c claims
	token, err := jwt.ParseWithClaims(credential, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || c.ID == "" {
		return ErrInvalidToken
	}
	ttl := int(time.Until(c.ExpiresAt.Time).Seconds()) + 1
	return v.store.RevokeToken(ctx, c.ID, ttl)
}
