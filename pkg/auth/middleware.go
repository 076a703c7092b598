package auth

import (
	"log/slog"
	"net/http"

	"github.com/denker-ai/denker/pkg/api"
	"github.com/denker-ai/denker/pkg/observability"
	"github.com/denker-ai/denker/pkg/transport"
)

// DefaultBypassEndpoints lists paths that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/metrics"}

// Middleware builds HTTP middleware from a Chain and an optional
// RateLimiter. Paths on the bypass list pass straight through; everything
// else is authenticated, rate-limited, and tagged with the caller identity
// in the request context.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision == No {
				slog.Warn("authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.Any("error", result.Err))
				transport.WriteAPIError(w, api.NewAuthError("authentication required"))
				return
			}

			if result.Decision != Yes || result.Identity == nil {
				transport.WriteAPIError(w, api.NewAuthError("authentication required"))
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						slog.String("subject", result.Identity.Subject),
						slog.String("tier", result.Identity.ServiceTier))
					observability.RateLimitRejectedTotal.WithLabelValues(result.Identity.ServiceTier).Inc()
					transport.WriteAPIError(w, api.NewRateLimitError("rate limit exceeded"))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))
		})
	}
}
