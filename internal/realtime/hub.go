// Package realtime carries live events over websockets. The Hub owns one
// buffered writer per connection; the Gateway authenticates, registers
// presence and feeds inbound envelopes to the coordinator.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrConnectionGone = errors.New("realtime: connection closed")
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// wsEvent is the envelope for every frame in both directions.
type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type conn struct {
	id        string
	username  string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Hub maps connection ids to live websocket connections.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*conn
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{conns: make(map[string]*conn), buffer: buffer, logger: logger}
}

// Emit queues an event for one connection without blocking.
func (h *Hub) Emit(connectionID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnectionGone
	}

	msg, err := json.Marshal(wsEvent{Type: event, Data: payload})
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", event, err)
	}

	select {
	case <-c.done:
		return ErrConnectionGone
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close drops the connection and closes its socket.
func (h *Hub) Close(connectionID string) {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	delete(h.conns, connectionID)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// CloseAll closes every connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.conns
	h.conns = make(map[string]*conn)
	h.mu.Unlock()
	for _, c := range all {
		c.close()
	}
}

func (h *Hub) add(id, username string, ws *websocket.Conn) *conn {
	c := &conn{
		id:       id,
		username: username,
		ws:       ws,
		send:     make(chan []byte, h.buffer),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
	go h.writePump(c)
	return c
}

// writePump is the only writer on c.ws.
func (h *Hub) writePump(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("websocket write failed", "connection_id", c.id, "username", c.username, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
