package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/middleware"
)

// WebsocketController upgrades signed-in users to the live hub. Each
// connection joins its user and tenant channels.
type WebsocketController struct {
	hub application.Huber
}

func NewWebsocketController(app application.Application) application.Controller {
	return &WebsocketController{hub: app.Websocket()}
}

func (c *WebsocketController) Key() string {
	return "/ws"
}

func (c *WebsocketController) Register(r *mux.Router) {
	router := r.PathPrefix("/ws").Subrouter()
	router.Use(middleware.RedirectNotAuthenticated())
	router.Handle("", c.hub).Methods(http.MethodGet)
}
