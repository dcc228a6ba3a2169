package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wricardo/boxcast/game/service"
	"github.com/wricardo/boxcast/game/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 120 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 16 * 1024

	// Outbound frames buffered per client before it is considered too slow.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Viewers connect from any page
		return true
	},
}

// Core is the part of the broadcast service the hub drives.
// service.BoxService satisfies it.
type Core interface {
	Connect(ctx context.Context, h session.Handle) (int, error)
	Receive(h session.Handle, raw []byte)
	Disconnect(h session.Handle, code int, reason string)
}

// Hub upgrades viewer connections and ties each one to the core
type Hub struct {
	core   Core
	logger *log.Logger

	mu      sync.Mutex
	clients map[*Client]bool
	closing bool
	wg      sync.WaitGroup
}

// NewHub creates a new WebSocket hub
func NewHub(core Core, logger *log.Logger) *Hub {
	return &Hub{
		core:    core,
		logger:  logger,
		clients: make(map[*Client]bool),
	}
}

// ServeWS upgrades the request and registers the viewer with the core
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type")

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	connID := uuid.NewString()
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		connID: connID,
		logger: h.logger.With("conn_id", connID),
	}

	if !h.add(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()

	userID, err := h.core.Connect(r.Context(), client)
	if err != nil {
		code := websocket.CloseInternalServerErr
		if errors.Is(err, service.ErrServiceClosed) {
			code = websocket.CloseGoingAway
		}
		client.logger.Warn("Failed to register viewer", "err", err)
		h.remove(client)
		client.closeSend(code, "unavailable")
		h.wg.Done()
		return
	}
	client.userID = userID

	client.logger.Debug("Viewer attached", "user_id", userID, "remote", r.RemoteAddr)
	go client.readPump()
}

// Count returns the number of open client connections
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every client with 1001 Going Away and waits for their
// read loops to finish. Connections still open when ctx ends are dropped.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.closeSend(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("All viewers closed", "count", len(clients))
		return nil
	case <-ctx.Done():
		for _, c := range clients {
			c.conn.Close()
		}
		return ctx.Err()
	}
}

// add registers client unless the hub is shutting down
func (h *Hub) add(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.clients[c] = true
	h.wg.Add(1)
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// IsUpgrade reports whether r asks to switch to the WebSocket protocol
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}
