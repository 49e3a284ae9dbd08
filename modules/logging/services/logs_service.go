package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/modules/logging/domain/entities/auditlog"
	"github.com/iota-uz/admin-portal/modules/logging/domain/entities/authenticationlog"
	"github.com/iota-uz/admin-portal/pkg/composables"
)

// LogsService writes authentication logs and purges both log tables past
// retention. Audit entries are written by the mediator through
// AuditLogRepository.
type LogsService struct {
	authRepo  authenticationlog.Repository
	auditRepo auditlog.Repository
	now       func() time.Time
}

func NewLogsService(authRepo authenticationlog.Repository, auditRepo auditlog.Repository) *LogsService {
	return &LogsService{
		authRepo:  authRepo,
		auditRepo: auditRepo,
		now:       time.Now,
	}
}

func (s *LogsService) RecordSignIn(ctx context.Context, event *session.CreatedEvent) error {
	userID := event.Result.UserID
	return s.authRepo.Create(ctx, &authenticationlog.AuthenticationLog{
		ID:        uuid.New(),
		TenantID:  event.Result.TenantID,
		UserID:    &userID,
		Method:    event.Method,
		Succeeded: true,
		IP:        event.Result.IP,
		UserAgent: event.Result.UserAgent,
		CreatedAt: event.Result.CreatedAt,
	})
}

func (s *LogsService) RecordFailure(ctx context.Context, event *user.SignInFailedEvent) error {
	userID := event.Snapshot.ID
	at := event.At
	if at.IsZero() {
		at = s.now()
	}
	return s.authRepo.Create(ctx, &authenticationlog.AuthenticationLog{
		ID:        uuid.New(),
		TenantID:  event.Snapshot.TenantID,
		UserID:    &userID,
		Email:     event.Snapshot.Email,
		Method:    event.Method,
		Succeeded: false,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		CreatedAt: at,
	})
}

// Purge deletes log rows older than retention. A non-positive retention is a no-op.
func (s *LogsService) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	before := s.now().Add(-retention)
	var total int64
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		n, err := s.authRepo.DeleteBefore(txCtx, before)
		if err != nil {
			return err
		}
		total += n
		n, err = s.auditRepo.DeleteBefore(txCtx, before)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	return total, err
}

// RunPurge calls Purge every interval until ctx is done.
func (s *LogsService) RunPurge(ctx context.Context, interval, retention time.Duration, logger *logrus.Logger) error {
	if retention <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		n, err := s.Purge(ctx, retention)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.WithError(err).Warn("logging: purge failed")
			continue
		}
		if n > 0 {
			logger.WithField("rows", n).Info("logging: purged old log entries")
		}
	}
}
