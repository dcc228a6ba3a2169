package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

const slowClientReason = "send buffer full"

// Client is one viewer connection. It is the session.Handle the core
// broadcasts through.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID string
	userID int
	logger *log.Logger

	mu       sync.Mutex
	closed   bool
	closeMsg []byte
	// close code sent by the server, if it initiated the close
	serverCode int
}

// Send queues a frame without blocking. A client whose buffer is full is
// closed, like a viewer that stopped reading.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()

	c.closeSend(websocket.CloseTryAgainLater, slowClientReason)
	return ErrSendBufferFull
}

// ConnID returns the correlation id used in transport logs
func (c *Client) ConnID() string {
	return c.connID
}

// closeSend stops outbound traffic; writePump then sends a close frame
// with code and reason
func (c *Client) closeSend(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.serverCode = code
	c.closeMsg = websocket.FormatCloseMessage(code, reason)
	close(c.send)
}

// readPump forwards inbound frames to the core until the connection ends
func (c *Client) readPump() {
	code, reason := websocket.CloseNoStatusReceived, ""
	defer func() {
		c.hub.remove(c)
		c.hub.core.Disconnect(c, code, reason)
		c.closeSend(websocket.CloseNormalClosure, "")
		c.conn.Close()
		c.hub.wg.Done()
		c.logger.Debug("Read loop finished", "user_id", c.userID, "code", code)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				code, reason = closeErr.Code, closeErr.Text
			case c.serverClosed() != 0:
				code = c.serverClosed()
			default:
				code = websocket.CloseAbnormalClosure
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) &&
				c.serverClosed() == 0 {
				c.logger.Warn("WebSocket error", "user_id", c.userID, "err", err)
			}
			return
		}
		c.hub.core.Receive(c, message)
	}
}

func (c *Client) serverClosed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverCode
}

// writePump writes queued frames, one message per frame, and keeps the
// connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, c.closeMsg)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
