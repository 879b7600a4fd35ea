package gateway

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes the telemetry registry in the prometheus text
// format, or 404s when telemetry is not loaded.
func (g *Gateway) metricsHandler() http.Handler {
	if g.metrics == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(g.metrics.Registry(), promhttp.HandlerOpts{
		ErrorLog: promLogger{g},
	})
}

type promLogger struct{ g *Gateway }

func (l promLogger) Println(v ...any) {
	l.g.logger.Error("metrics exposition failed", "error", fmt.Sprint(v...))
}
