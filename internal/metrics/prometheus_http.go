package metrics

import (
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns an http.Handler serving reg's metrics.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// NewPrometheusRecorderServing builds a PrometheusRecorder on a fresh
// registry and exposes it over HTTP at addr for the lifetime of the
// process. The listener runs in the background; a bind failure is logged
// and metrics recording continues unexposed.
func NewPrometheusRecorderServing(addr string, logger *slog.Logger) *PrometheusRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	go func() {
		if err := http.ListenAndServe(addr, HTTPHandler(reg)); err != nil {
			logger.Warn("metrics listener stopped", slog.String("addr", addr), "error", err)
		}
	}()
	return pr
}
