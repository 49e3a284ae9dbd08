// Package metrics exposes the process metrics registry over HTTP.
package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iota-uz/admin-portal/pkg/application"
)

const DefaultPath = "/debug/prometheus"

type PrometheusController struct {
	path    string
	handler http.Handler
}

// NewPrometheusController serves the default registry, which carries the
// mediator, outbox, authz and auth collectors, in OpenMetrics format when
// the scraper asks for it.
func NewPrometheusController(path string) application.Controller {
	if path == "" {
		path = DefaultPath
	}
	handler := promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}),
	)
	return &PrometheusController{path: path, handler: handler}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, c.handler).Methods(http.MethodGet)
}
