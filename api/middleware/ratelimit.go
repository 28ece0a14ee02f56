package middleware

import (
	"fmt"
	"net/http"

	"github.com/lunebox/storefront-backend/api/responses"
	"github.com/lunebox/storefront-backend/pkg/config"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
	pkgredis "github.com/lunebox/storefront-backend/pkg/redis"
)

// CheckoutRateLimit throttles checkout creation per session with a
// fixed window. A limiter outage fails open; throttling is protection
// for the commerce platform, not a correctness guarantee.
func CheckoutRateLimit(store *pkgredis.Client, cfg config.RateLimitConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || cfg.CheckoutLimit <= 0 || cfg.CheckoutWindow <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			scope := fmt.Sprintf("checkout:%s", SessionIDFromContext(r.Context()))
			allowed, count, err := store.FixedWindowAllow(r.Context(), scope, int64(cfg.CheckoutLimit), cfg.CheckoutWindow)
			if err != nil {
				if logg != nil {
					logg.Warn(r.Context(), "checkout rate limiter unavailable, allowing request")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					ctx := logg.WithField(r.Context(), "attempts", count)
					logg.Warn(ctx, "checkout rate limit exceeded")
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many checkout attempts, slow down"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
