package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type HealthController struct {
	db Pinger
}

func NewHealthController(app application.Application) application.Controller {
	return &HealthController{db: app.DB()}
}

func NewHealthControllerWith(db Pinger) application.Controller {
	return &HealthController{db: db}
}

func (c *HealthController) Key() string {
	return "/health"
}

func (c *HealthController) Register(r *mux.Router) {
	r.HandleFunc("/health", c.Get).Methods(http.MethodGet, http.MethodHead)
}

func (c *HealthController) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	status := HealthStatus{Status: "ok", Database: "ok"}
	code := http.StatusOK
	if err := c.db.Ping(ctx); err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("health check: database unreachable")
		status = HealthStatus{Status: "degraded", Database: "unreachable"}
		code = http.StatusServiceUnavailable
	}
	_ = httpapi.WriteJSON(w, code, status)
}
