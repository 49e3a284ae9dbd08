package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/iota-uz/admin-portal/components"
	"github.com/iota-uz/admin-portal/pkg/httpapi"
)

func respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	httpapi.Respond(w, r, data, err)
}

func respondCreated(w http.ResponseWriter, r *http.Request, data any, err error) {
	httpapi.RespondCreated(w, r, data, err)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	httpapi.RespondError(w, r, err)
}

func errorMessage(ctx context.Context, err error) string {
	return components.ErrorMessage(ctx, err)
}

func formState(ctx context.Context, err error) (string, map[string]string) {
	return components.FormState(ctx, err)
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" {
		return "/"
	}
	return next
}

func setCookie(w http.ResponseWriter, name, value string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string, secure bool) {
	setCookie(w, name, "", -1, secure)
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, message string) {
	components.RedirectWithFlash(w, r, target, message)
}

func useFlash(w http.ResponseWriter, r *http.Request) string {
	return components.Flash(w, r)
}
