package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/skillbridge-billing/api/responses"
	"github.com/angelmondragon/skillbridge-billing/pkg/config"
	pkgerrors "github.com/angelmondragon/skillbridge-billing/pkg/errors"
	"github.com/angelmondragon/skillbridge-billing/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names a dependency in the readiness report.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SkillBridge-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SkillBridge-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		report := map[string]string{}
		failed := false
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				failed = true
				report[check.Name] = "unavailable"
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{"dependency": check.Name, "error": err.Error()}), "readiness check failed")
				}
				continue
			}
			report[check.Name] = "ok"
		}

		if failed {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(report))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": report})
	}
}
