package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/revenac/apiserver/internal/cache"
	"github.com/revenac/apiserver/internal/metrics"
	"github.com/rs/zerolog"
)

// Limiter counts hits per key within a fixed window. *cache.RateLimiter
// satisfies it.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimitUser limits each authenticated user to limit requests per window
// for action. It must run after the auth middleware. Limiter errors let the
// request through.
func RateLimitUser(limiter Limiter, action string, limit int, window time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit < 1 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := userIDFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			allowed, err := limiter.Allow(r.Context(), cache.UserActionKey(userID, action), limit, window)
			if err != nil {
				logger.Warn().Err(err).Str("action", action).Int("user_id", userID).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.IncRateLimited(action)
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
