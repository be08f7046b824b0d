package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parkline/relay/internal/relay/protocol"
)

// WSClient is a simple websocket test client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials ws://addr/ws and returns a connected test client.
//
// Precondition: addr must be a "host:port" string with a listening relay.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, addr string) *WSClient {
	t.Helper()
	start := time.Now()

	url := fmt.Sprintf("ws://%s/ws", addr)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send writes one envelope.
//
// Postcondition: The frame is written, or the test fails.
func (c *WSClient) Send(mt protocol.MessageType, data any) {
	c.t.Helper()
	raw, err := protocol.Encode(mt, data)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", mt, err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.t.Fatalf("sending %s: %v", mt, err)
	}
}

// ReadEnvelope reads one envelope within the timeout.
//
// Postcondition: Returns the decoded envelope or fails the test.
func (c *WSClient) ReadEnvelope(timeout time.Duration) protocol.Envelope {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading envelope: %v", err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		c.t.Fatalf("decoding envelope: %v", err)
	}
	return env
}

// Expect reads envelopes until one of the given type arrives, failing on
// timeout or after too many unrelated messages.
func (c *WSClient) Expect(mt protocol.MessageType, timeout time.Duration) protocol.Envelope {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	for i := 0; i < 32; i++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		env := c.ReadEnvelope(remaining)
		if env.Type == mt {
			return env
		}
	}
	c.t.Fatalf("did not receive %s within %s", mt, timeout)
	return protocol.Envelope{}
}

// Close closes the client side of the connection.
func (c *WSClient) Close() {
	_ = c.conn.Close()
}
