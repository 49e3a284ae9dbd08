package eventbus

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/admin-portal/pkg/logging"
)

type created struct {
	name string
}

type deleted struct{}

func TestPublisher_Publish(t *testing.T) {
	bus := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))

	var got string
	bus.Subscribe(func(e *created) {
		got = e.name
	})
	bus.Subscribe(func(e *deleted) {
		t.Error("should not be called")
	})

	bus.Publish(&created{name: "acme"})
	require.Equal(t, "acme", got)
	require.Equal(t, 2, bus.SubscribersCount())
}

func TestPublisher_PanicIsRecovered(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)

	bus := NewEventPublisher(log)
	calledAfter := false
	bus.Subscribe(func(e *created) { panic("boom") })
	bus.Subscribe(func(e *created) { calledAfter = true })

	require.NotPanics(t, func() { bus.Publish(&created{}) })
	require.True(t, calledAfter)
	require.Contains(t, buf.String(), "panicked")
}

func TestPublisher_PublishE(t *testing.T) {
	bus := NewEventPublisher(logging.ConsoleLogger(logrus.WarnLevel))

	require.ErrorIs(t, bus.PublishE(&created{}), ErrNoSubscribers)

	sentinel := errors.New("handler failed")
	bus.Subscribe(func(ctx context.Context, e *created) error { return sentinel })
	bus.Subscribe(func(ctx context.Context, e *created) int { return 1 })

	err := bus.PublishE(context.Background(), &created{})
	require.ErrorIs(t, err, sentinel)
	require.ErrorIs(t, err, ErrInvalidHandlerReturn)

	bus.Clear()
	bus.Subscribe(func(ctx context.Context, e *created) { panic("boom") })
	require.ErrorContains(t, bus.PublishE(context.Background(), &created{}), "panicked")
}

func TestPublisher_Unsubscribe(t *testing.T) {
	bus := NewEventPublisher(nil)
	handler := func(e *created) {}
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)
	require.Equal(t, 0, bus.SubscribersCount())
}

func TestMatchSignature(t *testing.T) {
	require.True(t, MatchSignature(func(e *created) {}, []any{&created{}}))
	require.False(t, MatchSignature(func(e *created) {}, []any{&deleted{}}))
	require.False(t, MatchSignature(func(e *created) {}, []any{}))
	require.False(t, MatchSignature(func(e *created) {}, []any{&created{}, &created{}}))
	require.True(t, MatchSignature(func(ctx context.Context) {}, []any{context.Background()}))
	require.True(t, MatchSignature(func(e *created) {}, []any{nil}))
	require.False(t, MatchSignature("not a func", []any{}))
}
