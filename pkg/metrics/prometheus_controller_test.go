package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/metrics"
)

func TestPrometheusController(t *testing.T) {
	c := metrics.NewPrometheusController("")
	assert.Equal(t, metrics.DefaultPath, c.Key())

	r := mux.NewRouter()
	c.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, metrics.DefaultPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "promhttp_metric_handler_requests_total")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, metrics.DefaultPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
