// Package monitor implements a websocket-based live dashboard: every
// frame the engine processes is broadcast, JSON-encoded, to whatever
// dashboard clients are currently connected. It is purely observational
// and carries no protocol semantics of its own.
package monitor

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sadewadee/maboo-spoa/internal/spoe/spop"
)

// Event is the JSON payload pushed to every connected dashboard client.
type Event struct {
	Timestamp int64  `json:"ts"`
	StreamID  uint64 `json:"stream_id"`
	FrameID   uint64 `json:"frame_id"`
	Direction string `json:"direction"`
	Kind      string `json:"kind"`
	Messages  []string `json:"messages,omitempty"`
	Actions   int    `json:"actions,omitempty"`
}

// client is one connected dashboard websocket, with its own send
// queue so a slow browser can't stall frame delivery to others.
type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans frame events out to every connected dashboard client. It
// satisfies the engine's observer interface via ObserveFrame.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	nowFn func() int64
}

// New creates a Hub. nowFn is injectable for tests; pass nil for time.Now.
func New(logger *slog.Logger, nowFn func() int64) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
		nowFn:   nowFn,
	}
}

// ObserveFrame satisfies the engine's observer interface.
func (h *Hub) ObserveFrame(streamID, frameID uint64, dir string, f *spop.Frame) {
	h.mu.RLock()
	if len(h.clients) == 0 {
		h.mu.RUnlock()
		return
	}
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var ts int64
	if h.nowFn != nil {
		ts = h.nowFn()
	} else {
		ts = time.Now().Unix()
	}

	names := make([]string, 0, len(f.Messages))
	for _, m := range f.Messages {
		names = append(names, m.Name)
	}

	evt := Event{
		Timestamp: ts,
		StreamID:  streamID,
		FrameID:   frameID,
		Direction: dir,
		Kind:      f.Kind.String(),
		Messages:  names,
		Actions:   len(f.Actions),
	}

	for _, c := range targets {
		select {
		case c.send <- evt:
		default:
			h.logger.Warn("monitor: dropping event for slow dashboard client")
		}
	}
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

func (c *client) writePump(logger *slog.Logger) {
	for evt := range c.send {
		payload, err := json.Marshal(evt)
		if err != nil {
			logger.Warn("monitor: marshal event failed", "err", err)
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Debug("monitor: write to dashboard client failed", "err", err)
			return
		}
	}
}
