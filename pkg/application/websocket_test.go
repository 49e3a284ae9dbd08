package application

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/admin-portal/pkg/ws"
)

type recordingHub struct {
	http.Handler
	sent map[string][][]byte
}

func (h *recordingHub) JoinChannel(string, *ws.Connection)  {}
func (h *recordingHub) LeaveChannel(string, *ws.Connection) {}

func (h *recordingHub) BroadcastToChannel(channel string, msg []byte) {
	h.sent[channel] = append(h.sent[channel], msg)
}

func (h *recordingHub) ConnectionsInChannel(string) []*ws.Connection {
	return nil
}

func TestHuber_Channels(t *testing.T) {
	rec := &recordingHub{sent: map[string][][]byte{}}
	h := &huber{hub: rec, logger: logrus.New()}
	userID := uuid.New()

	h.SendToUser(userID, []byte("one"))
	h.Broadcast([]byte("two"))
	h.DisconnectUser(userID)

	assert.Equal(t, [][]byte{[]byte("one")}, rec.sent["user/"+userID.String()])
	assert.Equal(t, [][]byte{[]byte("two")}, rec.sent[ChannelAuthenticated])
}
