package components

import (
	"context"
	"errors"
	"net/http"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/intl"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const flashCookie = "flash"

func RedirectWithFlash(w http.ResponseWriter, r *http.Request, target, message string) {
	composables.SetFlash(w, flashCookie, []byte(message))
	http.Redirect(w, r, target, http.StatusFound)
}

// Flash reads and clears the message set by RedirectWithFlash.
func Flash(w http.ResponseWriter, r *http.Request) string {
	b, err := composables.UseFlash(w, r, flashCookie)
	if err != nil {
		return ""
	}
	return string(b)
}

// ErrorMessage is the localized text shown on a page for err.
func ErrorMessage(ctx context.Context, err error) string {
	var be *serrors.BaseError
	switch code := serrors.CodeOf(err); {
	case code == serrors.Internal || code == serrors.SavingChanges:
		composables.UseLogger(ctx).WithError(err).Error("request failed")
		return intl.T(ctx, "Errors.Internal")
	case code == serrors.Validation:
		return intl.T(ctx, "Errors.Validation")
	case errors.As(err, &be) && be.LocaleKey != "":
		if msg := intl.T(ctx, be.LocaleKey); msg != be.LocaleKey {
			return msg
		}
		return be.Message
	default:
		return err.Error()
	}
}

// FormState splits err into a page message and per-field messages.
func FormState(ctx context.Context, err error) (string, map[string]string) {
	var ve *serrors.ValidationError
	if errors.As(err, &ve) {
		return intl.T(ctx, "Errors.Validation"), ve.Fields
	}
	return ErrorMessage(ctx, err), nil
}
