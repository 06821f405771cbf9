package monitor

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served same-origin by the admin surface
	},
}

// Handler upgrades incoming requests to websocket dashboard connections.
type Handler struct {
	hub    *Hub
	logger *slog.Logger
}

// NewHandler builds an http.Handler that registers dashboard clients
// with hub.
func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("monitor: websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan Event, 64)}
	h.hub.register(c)
	h.logger.Debug("monitor: dashboard client connected")

	go c.writePump(h.logger)
	go h.readPump(c)
}

// readPump drains (and discards) client frames purely to detect
// disconnects; the dashboard is a one-way event stream.
func (h *Handler) readPump(c *client) {
	defer func() {
		h.hub.unregister(c)
		c.conn.Close()
		h.logger.Debug("monitor: dashboard client disconnected")
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
