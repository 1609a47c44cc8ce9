package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/projectmarket-backend/api/responses"
	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/types"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ProjectMarket-Env", cfg.App.Env)
		responses.WriteSuccess(w, types.HealthStatus{Status: "live"})
	}
}

// HealthReady pings every named dependency and reports 503 when any fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ProjectMarket-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(names))
		var failed []string
		for _, name := range names {
			dep := deps[name]
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = append(failed, name)
				if logg != nil {
					logg.Error(logg.WithField(r.Context(), "dependency", name), "readiness check failed", err)
				}
				continue
			}
			checks[name] = "up"
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeUnavailable, "dependencies unavailable").
				WithDetails(map[string]any{"failed": failed}))
			return
		}
		responses.WriteSuccess(w, types.HealthStatus{Status: "ready", Checks: checks})
	}
}
