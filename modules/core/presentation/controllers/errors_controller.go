package controllers

import (
	"net/http"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/modules/core/presentation/templates"
	"github.com/iota-uz/admin-portal/pkg/application"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/routing"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrRouteNotFound = serrors.NewError(serrors.NotFound, "not found", "Errors.NotFound")

type ErrorPageProps struct {
	Status  int
	Message string
}

// NotFound answers unknown routes: JSON envelopes for API and OData paths,
// the error page otherwise.
func NotFound(app application.Application) http.HandlerFunc {
	classifier := routing.NewClassifier(routing.DefaultRules())
	return func(w http.ResponseWriter, r *http.Request) {
		if classifier.WantsJSON(r.URL.Path) {
			_ = httpapi.WriteError(w, ErrRouteNotFound)
			return
		}
		renderErrorPage(app, w, r, http.StatusNotFound, intl.T(r.Context(), "Errors.NotFound"))
	}
}

func MethodNotAllowed() http.HandlerFunc {
	classifier := routing.NewClassifier(routing.DefaultRules())
	return func(w http.ResponseWriter, r *http.Request) {
		if classifier.WantsJSON(r.URL.Path) {
			_ = httpapi.WriteJSON(w, http.StatusMethodNotAllowed, &httpapi.Envelope{
				Error: &httpapi.ErrorBody{Code: "MethodNotAllowed", Message: "method not allowed"},
			})
			return
		}
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func renderErrorPage(app application.Application, w http.ResponseWriter, r *http.Request, status int, message string) {
	props := &ErrorPageProps{Status: status, Message: message}
	v := components.NewView(app, r, http.StatusText(status), props)
	templates.Pages().Render(w, r, "error", v, status)
}
