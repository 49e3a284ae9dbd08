package handlers_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/admin-portal/modules/superadmin/domain/aggregates/alert"
	"github.com/iota-uz/admin-portal/modules/superadmin/handlers"
	"github.com/iota-uz/admin-portal/pkg/eventbus"
)

type recordingBroadcaster struct {
	frames []string
}

func (b *recordingBroadcaster) Broadcast(msg []byte) {
	b.frames = append(b.frames, string(msg))
}

func TestAlertHandler(t *testing.T) {
	b := &recordingBroadcaster{}
	bus := eventbus.NewEventPublisher(logrus.New())
	handlers.NewAlertHandler(b).Subscribe(bus)

	ctx := context.Background()
	bus.Publish(ctx, &alert.CreatedEvent{})
	bus.Publish(ctx, &alert.UpdatedEvent{})
	bus.Publish(ctx, &alert.DeletedEvent{})

	assert.Len(t, b.frames, 3)
	assert.JSONEq(t, `{"type":"alerts.changed"}`, b.frames[0])
}
