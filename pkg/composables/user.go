package composables

import (
	"context"
	"errors"

	"github.com/iota-uz/admin-portal/modules/core/domain/aggregates/user"
	"github.com/iota-uz/admin-portal/modules/core/domain/entities/session"
	"github.com/iota-uz/admin-portal/pkg/constants"
)

var (
	ErrNoUserFound    = errors.New("no user found")
	ErrNoSessionFound = errors.New("no session found")
)

func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, constants.UserKey, u)
}

// UseUser returns the signed-in user.
func UseUser(ctx context.Context) (user.User, error) {
	u, ok := ctx.Value(constants.UserKey).(user.User)
	if !ok || u == nil {
		return nil, ErrNoUserFound
	}
	return u, nil
}

func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, constants.SessionKey, sess)
}

func UseSession(ctx context.Context) (*session.Session, error) {
	sess, ok := ctx.Value(constants.SessionKey).(*session.Session)
	if !ok || sess == nil {
		return nil, ErrNoSessionFound
	}
	return sess, nil
}
