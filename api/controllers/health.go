package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/trailpack-backend/api/responses"
	"github.com/angelmondragon/trailpack-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
	"github.com/angelmondragon/trailpack-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

const envHeader = "X-Trailpack-Env"

// Pinger is implemented by every dependency the readiness probe checks.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports 503 until Postgres and Redis both answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, db Pinger, redis Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := []struct {
			name   string
			pinger Pinger
		}{
			{"postgres", db},
			{"redis", redis},
		}
		for _, check := range checks {
			if check.pinger == nil {
				continue
			}
			if err := check.pinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" unavailable").
						WithDetails(map[string]any{"dependency": check.name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
