package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/clausewise-backend/api/responses"
	"github.com/angelmondragon/clausewise-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/redis"
)

const (
	envHeader        = "X-Clausewise-Env"
	readinessTimeout = 2 * time.Second
)

// ReadinessCheck is one dependency probed by /health/ready.
type ReadinessCheck struct {
	Name   string
	Pinger redis.Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and fails with DEPENDENCY_ERROR when any
// of them does not answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		status := make(map[string]string, len(checks))
		var failed error
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			err := check.Pinger.Ping(ctx)
			cancel()
			if err != nil {
				status[check.Name] = "unavailable"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable")
				}
				continue
			}
			status[check.Name] = "ok"
		}

		if failed != nil {
			responses.WriteError(r.Context(), logg, w, failed)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": status})
	}
}
