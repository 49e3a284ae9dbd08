package authz

import (
	"fmt"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

const errorLocaleKey = "Errors.Forbidden"

func forbiddenError(req Request) *serrors.BaseError {
	return serrors.NewError(
		serrors.Forbidden,
		fmt.Sprintf("permission denied: %s.%s", req.Object, req.Action),
		errorLocaleKey,
	)
}
