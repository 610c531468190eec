package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"geochat-service/internal/logging"
	"geochat-service/internal/models"
	"geochat-service/internal/observability"
)

const (
	writeWait    = 10 * time.Second
	sendBuffer   = 32
	wsRoutingKey = "ws_events.chat"
	wsEventType  = "ws_events"
)

var errSlowConsumer = errors.New("send buffer full")

// client owns a connection's outgoing queue. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	info ConnInfo
	send chan []byte
	done chan struct{}
}

func newClient(conn *websocket.Conn, info ConnInfo, buffer int) *client {
	return &client{
		conn: conn,
		info: info,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// Hub tracks the websocket clients following the global chat.
type Hub struct {
	clients map[*websocket.Conn]*client
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// AddClient registers a websocket connection and starts its writer.
func (h *Hub) AddClient(conn *websocket.Conn, info ConnInfo) {
	c := newClient(conn, info, sendBuffer)
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	go h.writePump(c)
}

// RemoveClient drops a websocket connection and stops its writer. It reports
// whether the connection was registered.
func (h *Hub) RemoveClient(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[conn]
	if !ok {
		return false
	}
	delete(h.clients, conn)
	close(c.done)
	return true
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues event for every connected client without blocking.
// A client whose queue is full is dropped.
func (h *Hub) Broadcast(event models.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.L().Error().Err(err).Msg("encode chat event")
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			h.drop(c, errSlowConsumer)
		}
	}
}

// DisconnectUser closes every connection held by userID and reports how many were closed.
func (h *Hub) DisconnectUser(userID int64) int {
	h.mu.RLock()
	var targets []*client
	for _, c := range h.clients {
		if c.info.UserID == userID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	closed := 0
	for _, c := range targets {
		if h.RemoveClient(c.conn) {
			observability.DecWSActive()
			_ = c.conn.Close()
			closed++
		}
	}
	return closed
}

func (h *Hub) writePump(c *client) {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.drop(c, err)
				return
			}
		}
	}
}

func (h *Hub) drop(c *client, err error) {
	if !h.RemoveClient(c.conn) {
		return
	}
	observability.DecWSActive()
	_ = c.conn.Close()
	logging.L().Warn().Err(err).Str("conn_id", c.info.ConnID).Msg("websocket client dropped")
	h.publishWSError(c.info, err)
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(context.Background(), wsRoutingKey, wsEventType, "ws_error", connPayload(info, "ws_error", err.Error()))
}
