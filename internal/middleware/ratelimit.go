package middleware

import (
	"net/http"
	"strings"

	"github.com/teamhub/internal/logger"
	"github.com/teamhub/internal/storage"
)

const (
	rateLimitWindowSeconds = 60
	rateLimitMaxIP         = 200
	rateLimitMaxUser       = 100
)

// RateLimitAPI throttles /api/* per IP and per user id (when authenticated)
// over a sliding minute, backed by the shared auth store so limits hold
// across instances. Fails open when the store is unavailable: losing rate
// limiting beats losing the API.
func RateLimitAPI(store storage.AuthStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ok, err := store.AllowRate(r.Context(), "ip:"+ip, rateLimitMaxIP, rateLimitWindowSeconds)
			if err != nil {
				logger.Errorf("rate limit check ip=%s: %v", ip, err)
			} else if !ok {
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}
			if userID := GetUserID(r.Context()); userID != "" {
				ok, err := store.AllowRate(r.Context(), "user:"+userID, rateLimitMaxUser, rateLimitWindowSeconds)
				if err != nil {
					logger.Errorf("rate limit check user=%s: %v", userID, err)
				} else if !ok {
					http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if x := r.Header.Get("X-Real-Ip"); x != "" {
		return x
	}
	if x := r.Header.Get("X-Forwarded-For"); x != "" {
		if idx := strings.Index(x, ","); idx > 0 {
			return strings.TrimSpace(x[:idx])
		}
		return x
	}
	return r.RemoteAddr
}
