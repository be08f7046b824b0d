package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a websocket connection with a buffered outbound queue drained
// by a single writer goroutine. It implements session.Transport.
//
// Send never blocks: a closed connection or a saturated queue is an error,
// which the router treats as an abrupt disconnect. That bound keeps one
// stalled client from starving a whole location's fan-out.
type Conn struct {
	ws           *websocket.Conn
	sendCh       chan []byte
	writeTimeout time.Duration
	pingInterval time.Duration

	mu     sync.Mutex
	closed bool
}

// NewConn wraps an upgraded websocket connection.
//
// Precondition: ws must be non-nil; sendBuffer must be > 0; writeTimeout and
// pingInterval must be positive.
func NewConn(ws *websocket.Conn, sendBuffer int, writeTimeout, pingInterval time.Duration) *Conn {
	return &Conn{
		ws:           ws,
		sendCh:       make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

// Send queues data for the writer goroutine.
//
// Postcondition: Returns an error if the connection is closed or the queue
// is full; the frame is otherwise delivered best-effort.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s is closed", c.RemoteAddr())
	}
	select {
	case c.sendCh <- data:
		return nil
	default:
		return fmt.Errorf("connection %s send buffer full", c.RemoteAddr())
	}
}

// IsOpen reports whether the connection can still accept sends.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close marks the connection closed and signals the writer goroutine to
// finish. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.sendCh)
	}
	return nil
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// WritePump drains the send queue to the websocket, pinging on an interval
// to keep the peer's read deadline alive. It owns all writes; it returns
// when the queue is closed or a write fails, closing the underlying socket
// either way.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
