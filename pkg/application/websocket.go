package application

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admin-portal/pkg/composables"
	"github.com/iota-uz/admin-portal/pkg/ws"
)

// ChannelAuthenticated holds every signed-in connection of every tenant.
const ChannelAuthenticated = "authenticated"

func UserChannel(userID uuid.UUID) string {
	return "user/" + userID.String()
}

type HuberOptions struct {
	Logger      *logrus.Logger
	CheckOrigin func(r *http.Request) bool
}

// Huber is the /ws endpoint plus the pushes the modules make through it.
type Huber interface {
	http.Handler
	SendToUser(userID uuid.UUID, msg []byte)
	Broadcast(msg []byte)
	// DisconnectUser closes every open socket of userID.
	DisconnectUser(userID uuid.UUID)
}

func NewHub(opts *HuberOptions) Huber {
	h := &huber{logger: opts.Logger}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}
	h.hub = ws.NewHub(&ws.HubOptions{
		Logger:      h.logger,
		CheckOrigin: opts.CheckOrigin,
		OnConnect:   h.onConnect,
	})
	return h
}

type huber struct {
	hub    ws.Huber
	logger *logrus.Logger
}

func (h *huber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeHTTP(w, r)
}

// onConnect only accepts signed-in users; the upgrade is refused otherwise.
func (h *huber) onConnect(r *http.Request, _ *ws.Hub, conn *ws.Connection) error {
	usr, err := composables.UseUser(r.Context())
	if err != nil {
		return err
	}
	h.hub.JoinChannel(ChannelAuthenticated, conn)
	h.hub.JoinChannel(UserChannel(usr.ID()), conn)
	return nil
}

func (h *huber) SendToUser(userID uuid.UUID, msg []byte) {
	h.hub.BroadcastToChannel(UserChannel(userID), msg)
}

func (h *huber) Broadcast(msg []byte) {
	h.hub.BroadcastToChannel(ChannelAuthenticated, msg)
}

func (h *huber) DisconnectUser(userID uuid.UUID) {
	conns := h.hub.ConnectionsInChannel(UserChannel(userID))
	for _, c := range conns {
		_ = c.Close()
	}
	if len(conns) > 0 {
		h.logger.WithFields(logrus.Fields{"user-id": userID, "connections": len(conns)}).Info("websocket connections closed")
	}
}
