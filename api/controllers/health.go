package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/lunebox/storefront-backend/api/responses"
	"github.com/lunebox/storefront-backend/pkg/config"
	pkgerrors "github.com/lunebox/storefront-backend/pkg/errors"
	"github.com/lunebox/storefront-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lunebox-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every hard dependency. Any failure reports the
// service not ready; the failing dependency is named in the response.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, commerceP Pinger) http.HandlerFunc {
	checks := []struct {
		name string
		ping Pinger
	}{
		{"database", dbP},
		{"redis", redisP},
		{"commerce", commerceP},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lunebox-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for _, check := range checks {
			if check.ping == nil {
				continue
			}
			if err := check.ping.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" not ready").
						WithDetails(map[string]string{"dependency": check.name}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
