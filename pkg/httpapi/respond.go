package httpapi

import (
	"net/http"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

// Respond writes data in the success envelope or err in the error one.
func Respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if werr := WriteOK(w, data); werr != nil {
		composables.UseLogger(r.Context()).WithError(werr).Warn("failed to write response")
	}
}

func RespondCreated(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if werr := WriteCreated(w, data); werr != nil {
		composables.UseLogger(r.Context()).WithError(werr).Warn("failed to write response")
	}
}

// RespondError logs unexpected failures before writing the envelope.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	if code := serrors.CodeOf(err); code == serrors.Internal || code == serrors.SavingChanges {
		composables.UseLogger(r.Context()).WithError(err).Error("request failed")
	}
	if werr := WriteError(w, err); werr != nil {
		composables.UseLogger(r.Context()).WithError(werr).Warn("failed to write response")
	}
}
