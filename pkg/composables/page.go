package composables

import (
	"context"
	"errors"

	"github.com/iota-uz/admin-portal/pkg/constants"
	"github.com/iota-uz/admin-portal/pkg/types"
)

var ErrNoPageContext = errors.New("page context not found")

func WithPageCtx(ctx context.Context, pageCtx *types.PageContext) context.Context {
	return context.WithValue(ctx, constants.PageContextKey, pageCtx)
}

func UsePageCtx(ctx context.Context) (*types.PageContext, error) {
	pageCtx, ok := ctx.Value(constants.PageContextKey).(*types.PageContext)
	if !ok {
		return nil, ErrNoPageContext
	}
	return pageCtx, nil
}
