package mediator_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/mediator"
	"github.com/iota-uz/admin-portal/pkg/serrors"
)

type renameWidget struct {
	mediator.CommandBase
	ID   string `validate:"required"`
	Name string `validate:"required,min=3"`
}

func (r renameWidget) Validate(ctx context.Context) error {
	if r.Name == "forbidden" {
		return serrors.FieldError("Name", "name is reserved")
	}
	return nil
}

type widgetSnapshot struct {
	Name string `json:"name"`
}

type countWidgets struct{}

type memoryAudit struct {
	mu      sync.Mutex
	entries []*mediator.AuditEntry
}

func (m *memoryAudit) Record(_ context.Context, e *mediator.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func newMediator(t *testing.T, audit *memoryAudit, txCalls *int) *mediator.Mediator {
	t.Helper()
	runner := func(ctx context.Context, fn func(context.Context) error) error {
		*txCalls++
		return fn(ctx)
	}
	m := mediator.New(
		mediator.Logging(),
		mediator.Audit(audit),
		mediator.Validation(mediator.NewStructValidator()),
		mediator.Transaction(runner),
	)
	mediator.Register(m, func(ctx context.Context, req renameWidget) (mediator.Change[widgetSnapshot], error) {
		if req.ID == "missing" {
			return mediator.Change[widgetSnapshot]{}, serrors.NewError(serrors.NotFound, "widget not found", "")
		}
		return mediator.Change[widgetSnapshot]{
			ID:     req.ID,
			Before: widgetSnapshot{Name: "old"},
			After:  widgetSnapshot{Name: req.Name},
		}, nil
	})
	mediator.Register(m, func(ctx context.Context, req countWidgets) (int, error) {
		return 42, nil
	})
	return m
}

func TestSend_Command(t *testing.T) {
	audit := &memoryAudit{}
	txCalls := 0
	m := newMediator(t, audit, &txCalls)

	tenantID := uuid.New()
	ctx := composables.WithTenantID(context.Background(), tenantID)
	res, err := mediator.Send[mediator.Change[widgetSnapshot]](ctx, m, renameWidget{ID: "w1", Name: "shiny"})
	require.NoError(t, err)
	require.Equal(t, "shiny", res.After.Name)
	require.Equal(t, 1, txCalls)

	require.Len(t, audit.entries, 1)
	entry := audit.entries[0]
	require.Equal(t, "renameWidget", entry.Request)
	require.Equal(t, "w1", entry.EntityID)
	require.Equal(t, tenantID, entry.TenantID)
	require.True(t, entry.Succeeded)

	var ops []map[string]any
	require.NoError(t, json.Unmarshal(entry.Changes, &ops))
	require.Len(t, ops, 1)
	require.Equal(t, "replace", ops[0]["op"])
	require.Equal(t, "/name", ops[0]["path"])
	require.Equal(t, "shiny", ops[0]["value"])
}

func TestSend_AuditWithoutTenant(t *testing.T) {
	audit := &memoryAudit{}
	txCalls := 0
	m := newMediator(t, audit, &txCalls)

	_, err := mediator.Send[mediator.Change[widgetSnapshot]](context.Background(), m, renameWidget{ID: "w1", Name: "shiny"})
	require.NoError(t, err)

	require.Len(t, audit.entries, 1)
	require.Equal(t, uuid.Nil, audit.entries[0].TenantID)
	require.Equal(t, uuid.Nil, audit.entries[0].UserID)
}

func TestSend_Validation(t *testing.T) {
	audit := &memoryAudit{}
	txCalls := 0
	m := newMediator(t, audit, &txCalls)

	t.Run("struct tags", func(t *testing.T) {
		_, err := mediator.Send[mediator.Change[widgetSnapshot]](context.Background(), m, renameWidget{ID: "w1", Name: "ab"})
		var ve *serrors.ValidationError
		require.ErrorAs(t, err, &ve)
		require.Contains(t, ve.Fields, "Name")
	})

	t.Run("validator interface", func(t *testing.T) {
		_, err := mediator.Send[mediator.Change[widgetSnapshot]](context.Background(), m, renameWidget{ID: "w1", Name: "forbidden"})
		require.Equal(t, serrors.Validation, serrors.CodeOf(err))
	})

	require.Equal(t, 0, txCalls)
	require.Len(t, audit.entries, 2)
	require.False(t, audit.entries[0].Succeeded)
	require.Equal(t, string(serrors.Validation), audit.entries[0].ErrorCode)
}

func TestSend_HandlerError(t *testing.T) {
	audit := &memoryAudit{}
	txCalls := 0
	m := newMediator(t, audit, &txCalls)

	_, err := mediator.Send[mediator.Change[widgetSnapshot]](context.Background(), m, renameWidget{ID: "missing", Name: "shiny"})
	require.Equal(t, serrors.NotFound, serrors.CodeOf(err))
	require.Len(t, audit.entries, 1)
	require.Equal(t, string(serrors.NotFound), audit.entries[0].ErrorCode)
}

func TestSend_QuerySkipsCommandBehaviors(t *testing.T) {
	audit := &memoryAudit{}
	txCalls := 0
	m := newMediator(t, audit, &txCalls)

	n, err := mediator.Send[int](context.Background(), m, countWidgets{})
	require.NoError(t, err)
	require.Equal(t, 42, n)
	require.Equal(t, 0, txCalls)
	require.Empty(t, audit.entries)
}

func TestSend_NoHandler(t *testing.T) {
	m := mediator.New()
	_, err := mediator.Send[int](context.Background(), m, countWidgets{})
	require.True(t, errors.Is(err, mediator.ErrNoHandler))
}

func TestRegister_DuplicatePanics(t *testing.T) {
	m := mediator.New()
	h := func(ctx context.Context, req countWidgets) (int, error) { return 0, nil }
	mediator.Register(m, h)
	require.Panics(t, func() { mediator.Register(m, h) })
}

func TestBehaviorOrder(t *testing.T) {
	var order []string
	trace := func(name string) mediator.Behavior {
		return func(ctx context.Context, req any, next mediator.Next) (any, error) {
			order = append(order, name+">")
			res, err := next(ctx, req)
			order = append(order, "<"+name)
			return res, err
		}
	}
	m := mediator.New(trace("a"), trace("b"))
	mediator.Register(m, func(ctx context.Context, req countWidgets) (int, error) {
		order = append(order, "handler")
		return 1, nil
	})
	_, err := m.Send(context.Background(), countWidgets{})
	require.NoError(t, err)
	require.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)
}
