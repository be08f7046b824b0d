// Package ws accepts websocket connections and bridges them to the relay
// router: one reader goroutine per connection feeding raw frames in, one
// writer goroutine draining the outbound queue.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parkline/relay/internal/config"
	"github.com/parkline/relay/internal/relay/session"
)

// SessionHandler is the router-side contract for connection events.
type SessionHandler interface {
	// Connect registers a new transport and returns its session.
	Connect(t session.Transport) *session.Session
	// HandleMessage processes one raw inbound frame.
	HandleMessage(sess *session.Session, raw []byte)
	// Disconnect runs the abrupt-disconnect cleanup path.
	Disconnect(sess *session.Session)
}

// Acceptor listens for websocket upgrades on /ws and dispatches each
// connection to a SessionHandler.
type Acceptor struct {
	cfg      config.RelayConfig
	handler  SessionHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	httpSrv  *http.Server
	listener net.Listener
	conns    map[*Conn]struct{}
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewAcceptor creates a websocket acceptor with the given configuration.
//
// Precondition: cfg must have a valid port; handler and logger must be
// non-nil.
func NewAcceptor(cfg config.RelayConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Game clients connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*Conn]struct{}),
		quit:  make(chan struct{}),
	}
}

// ListenAndServe starts the HTTP listener and serves websocket upgrades
// until Stop is called. This method blocks.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.serveWS)

	srv := &http.Server{Handler: mux}

	a.mu.Lock()
	a.listener = listener
	a.httpSrv = srv
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket connections: %w", err)
	}
	return nil
}

// serveWS upgrades one HTTP request and runs its read loop.
func (a *Acceptor) serveWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	// The ping cadence must beat the peer's read deadline.
	pingInterval := a.cfg.ReadTimeout * 9 / 10
	conn := NewConn(wsConn, a.cfg.SendBuffer, a.cfg.WriteTimeout, pingInterval)

	a.mu.Lock()
	select {
	case <-a.quit:
		a.mu.Unlock()
		_ = conn.Close()
		_ = wsConn.Close()
		return
	default:
	}
	a.conns[conn] = struct{}{}
	a.wg.Add(1)
	a.mu.Unlock()

	go conn.WritePump()

	sess := a.handler.Connect(conn)
	a.readPump(conn, wsConn, sess)
}

// readPump reads frames until the connection dies, feeding each one to the
// handler. The read deadline is refreshed by pongs and by inbound frames.
func (a *Acceptor) readPump(conn *Conn, wsConn *websocket.Conn, sess *session.Session) {
	start := time.Now()
	defer func() {
		a.handler.Disconnect(sess)
		_ = conn.Close()

		a.mu.Lock()
		delete(a.conns, conn)
		a.mu.Unlock()
		a.wg.Done()

		a.logger.Debug("connection closed",
			zap.String("remote_addr", conn.RemoteAddr()),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	wsConn.SetReadLimit(a.cfg.MaxMessageSize)
	_ = wsConn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	})

	for {
		msgType, raw, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		_ = wsConn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		a.handler.HandleMessage(sess, raw)
	}
}

// Stop gracefully stops the acceptor: the listener closes, every open
// connection is closed, and all read loops drain before returning.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.quit)

	srv := a.httpSrv
	open := make([]*Conn, 0, len(a.conns))
	for conn := range a.conns {
		open = append(open, conn)
	}
	a.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(ctx)
		cancel()
	}
	for _, conn := range open {
		_ = conn.Close()
	}
	a.wg.Wait()

	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet
// listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the acceptor is currently accepting connections.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
