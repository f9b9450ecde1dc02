package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/anhpnguyen/edupay-backend/api/responses"
	pkgerrors "github.com/anhpnguyen/edupay-backend/pkg/errors"
	"github.com/anhpnguyen/edupay-backend/pkg/logger"
)

// RateLimiterStore is the sliding-window surface the limiter needs from redis.
type RateLimiterStore interface {
	SlidingWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// WebhookRateLimitPolicy caps inbound gateway callbacks over the trailing
// window. The cap is global, not per source: the point is to blunt replay
// floods before any signature work happens.
type WebhookRateLimitPolicy struct {
	Scope  string
	Window time.Duration
	Limit  int
}

func (p WebhookRateLimitPolicy) enabled() bool {
	return p.Window > 0 && p.Limit > 0
}

// WebhookRateLimit enforces the callback volume cap ahead of signature verification.
func WebhookRateLimit(policy WebhookRateLimitPolicy, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	scope := policy.Scope
	if scope == "" {
		scope = "webhook:payments"
	}

	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			allowed, count, err := store.SlidingWindowAllow(ctx, scope, int64(policy.Limit), policy.Window)
			if err != nil {
				// Redis being down must not block gateway callbacks; the
				// signature check still protects the ledger.
				if logg != nil {
					logg.Error(ctx, "webhook.rate_limit.unavailable", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"attempts":       count,
						"limit":          policy.Limit,
						"window_seconds": int(policy.Window.Seconds()),
					})
					logg.Warn(logCtx, "webhook.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "callback rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
