package services

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/pkg/cache"
	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

const sessionCacheTTL = 5 * time.Minute

// SessionService fronts the session table with the shared cache. Every
// deletion goes through it so revoked tokens stop resolving immediately.
type SessionService struct {
	repo      session.Repository
	cache     cache.Cache
	publisher eventbus.EventBus
	duration  time.Duration
}

func NewSessionService(repo session.Repository, c cache.Cache, publisher eventbus.EventBus, duration time.Duration) *SessionService {
	return &SessionService{
		repo:      repo,
		cache:     cache.Prefixed(c, "session"),
		publisher: publisher,
		duration:  duration,
	}
}

// Create stores a new session. Callers publish session.CreatedEvent once
// the surrounding transaction commits.
func (s *SessionService) Create(ctx context.Context, dto *session.CreateDTO) (*session.Session, error) {
	sess, err := dto.ToEntity(s.duration)
	if err != nil {
		return nil, errors.Wrap(err, "issue session token")
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get resolves a token; expired sessions are removed and reported as
// session.ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, token string) (*session.Session, error) {
	if token == "" {
		return nil, session.ErrSessionNotFound
	}
	sess, err := cache.GetJSON[*session.Session](ctx, s.cache, token)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			composables.UseLogger(ctx).WithError(err).Warn("session cache read failed")
		}
		sess, err = s.repo.GetByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		ttl := min(sessionCacheTTL, time.Until(sess.ExpiresAt))
		if ttl > 0 {
			if err := cache.SetJSON(ctx, s.cache, token, sess, ttl); err != nil {
				composables.UseLogger(ctx).WithError(err).Warn("session cache write failed")
			}
		}
	}
	if sess.IsExpired() {
		if err := s.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, session.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionService) Delete(ctx context.Context, token string) error {
	if err := s.cache.Delete(ctx, token); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, token); err != nil {
		return err
	}
	s.publisher.Publish(ctx, &session.DeletedEvent{Token: token})
	return nil
}

// RevokeUser signs the user out everywhere.
func (s *SessionService) RevokeUser(ctx context.Context, userID uuid.UUID) error {
	tokens, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if err := s.cache.Delete(ctx, token); err != nil {
			return err
		}
	}
	return nil
}

// RevokeTenant signs out every user of a tenant and returns who was signed out.
func (s *SessionService) RevokeTenant(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	revoked, err := s.repo.DeleteByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var users []uuid.UUID
	for _, rv := range revoked {
		if err := s.cache.Delete(ctx, rv.Token); err != nil {
			return nil, err
		}
		if !slices.Contains(users, rv.UserID) {
			users = append(users, rv.UserID)
		}
	}
	return users, nil
}

func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}
