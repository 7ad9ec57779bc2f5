package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

// ListenAndServe exposes the default prometheus registry under /metrics on
// addr. It blocks, so callers run it in a goroutine. An empty addr disables
// the endpoint.
func ListenAndServe(ctx context.Context, addr string, logg *logger.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if logg != nil {
		logCtx := logg.WithField(ctx, "addr", addr)
		logg.Info(logCtx, "serving prometheus metrics")
	}
	if err := http.ListenAndServe(addr, mux); err != nil && logg != nil {
		logg.Error(ctx, "metrics listener stopped", err)
	}
}
