// Package ws is a small channel-based websocket hub on top of gorilla/websocket.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

type Connectioner interface {
	SendMessage(msg []byte) error
	Close() error
}

type HubOptions struct {
	Logger       *logrus.Logger
	CheckOrigin  func(r *http.Request) bool
	OnConnect    func(r *http.Request, hub *Hub, conn *Connection) error
	OnDisconnect func(conn *Connection)
}

type Huber interface {
	http.Handler
	JoinChannel(channel string, conn *Connection)
	LeaveChannel(channel string, conn *Connection)
	BroadcastToChannel(channel string, msg []byte)
	ConnectionsInChannel(channel string) []*Connection
}

type Hub struct {
	upgrader websocket.Upgrader
	logger   *logrus.Logger
	opts     *HubOptions

	mu       sync.RWMutex
	conns    map[*Connection]struct{}
	channels map[string]map[*Connection]struct{}
}

func NewHub(opts *HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		logger:   logger,
		opts:     opts,
		conns:    make(map[*Connection]struct{}),
		channels: make(map[string]map[*Connection]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	conn := &Connection{conn: raw, send: make(chan []byte, sendBuffer), closed: make(chan struct{})}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	if h.opts.OnConnect != nil {
		if err := h.opts.OnConnect(r, h, conn); err != nil {
			h.logger.WithError(err).Warn("websocket connect rejected")
			h.remove(conn)
			return
		}
	}

	go conn.writePump()
	conn.readPump()
	h.remove(conn)
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	delete(h.conns, conn)
	for name, members := range h.channels {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}
	h.mu.Unlock()
	_ = conn.Close()
	if h.opts.OnDisconnect != nil {
		h.opts.OnDisconnect(conn)
	}
}

func (h *Hub) JoinChannel(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*Connection]struct{})
		h.channels[channel] = members
	}
	members[conn] = struct{}{}
}

func (h *Hub) LeaveChannel(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.channels[channel]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) ConnectionsInChannel(channel string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.channels[channel]
	out := make([]*Connection, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (h *Hub) BroadcastToChannel(channel string, msg []byte) {
	for _, c := range h.ConnectionsInChannel(channel) {
		if err := c.SendMessage(msg); err != nil {
			h.logger.WithError(err).WithField("channel", channel).Debug("dropping websocket message")
		}
	}
}

type Connection struct {
	conn      *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

var ErrConnectionClosed = websocket.ErrCloseSent

// SendMessage queues msg without blocking. A full buffer means the client is
// too slow and the message is dropped.
func (c *Connection) SendMessage(msg []byte) error {
	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSlowConsumer
	}
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) readPump() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
