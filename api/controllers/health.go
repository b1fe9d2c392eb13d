package controllers

import (
	"net/http"

	"github.com/velogear/velogear-backend/api/responses"
	"github.com/velogear/velogear-backend/pkg/config"
	"github.com/velogear/velogear-backend/pkg/db"
	"github.com/velogear/velogear-backend/pkg/logger"
	"github.com/velogear/velogear-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VeloGear-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VeloGear-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["database"] = "down"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "readiness database ping failed", err)
				}
			} else {
				checks["database"] = "up"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = "down"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "readiness redis ping failed", err)
				}
			} else {
				checks["redis"] = "up"
			}
		}

		status := http.StatusOK
		checks["status"] = "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			checks["status"] = "degraded"
		}
		responses.WriteSuccessStatus(w, status, checks)
	}
}
