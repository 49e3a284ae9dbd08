package outbox

import (
	"fmt"

	"github.com/iota-uz/admin-portal/pkg/serrors"
)

var ErrInvalidConfig = serrors.NewError(serrors.Internal, "invalid outbox configuration", "")

func invalidConfig(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidConfig}, args...)...)
}
