package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository stores alerts globally; they are not tenant scoped.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*SystemAlert, error)
	// Active returns alerts active at now, in no particular order.
	Active(ctx context.Context, now time.Time) ([]*SystemAlert, error)
	Create(ctx context.Context, a *SystemAlert) error
	Update(ctx context.Context, a *SystemAlert) error
	Delete(ctx context.Context, id uuid.UUID) error
}
