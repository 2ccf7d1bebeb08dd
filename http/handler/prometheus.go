package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PrometheusHandler serves the metrics of a prometheus registry.
type PrometheusHandler struct {
	metrics http.Handler
}

// NewPrometheus wraps the HTTP handler of a registry, e.g. promhttp.HandlerFor.
func NewPrometheus(metrics http.Handler) *PrometheusHandler {
	return &PrometheusHandler{
		metrics: metrics,
	}
}

// Metrics writes all collected metrics in the prometheus text format.
func (p *PrometheusHandler) Metrics(c echo.Context) error {
	p.metrics.ServeHTTP(c.Response(), c.Request())

	return nil
}
