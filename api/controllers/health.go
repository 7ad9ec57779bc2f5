package controllers

import (
	"context"
	"net/http"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/responses"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/config"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

// Pinger is a dependency that can answer a readiness ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WarrantyFlow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every wired dependency answers a ping.
// Nil dependencies are skipped so optional backends don't fail readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WarrantyFlow-Env", cfg.App.Env)

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
