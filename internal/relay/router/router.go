// Package router interprets inbound client messages against a session,
// mutates registry state, and fans outbound messages out to the sender's
// location.
package router

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parkline/relay/internal/relay/protocol"
	"github.com/parkline/relay/internal/relay/session"
)

// Router routes inbound envelopes and computes recipient sets for outbound
// fan-out. Malformed or unknown input is answered with a single error reply
// and never tears down the connection or the process.
type Router struct {
	registry        *session.Registry
	logger          *zap.Logger
	defaultLocation string
	now             func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// New creates a Router over the given registry.
//
// Precondition: registry and logger must be non-nil; defaultLocation must be
// non-empty.
func New(registry *session.Registry, defaultLocation string, logger *zap.Logger, opts ...Option) *Router {
	r := &Router{
		registry:        registry,
		logger:          logger,
		defaultLocation: defaultLocation,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect creates a session for a freshly accepted transport, registers it,
// and tells the client its server-assigned id.
//
// Postcondition: The returned session is in the registry with no profile.
func (r *Router) Connect(t session.Transport) *session.Session {
	sess := session.New(uuid.NewString(), t, r.defaultLocation, r.now())
	r.registry.Insert(sess)

	r.logger.Info("client connected",
		zap.String("player_id", sess.ID),
		zap.String("location", sess.Location()),
	)

	r.SendTo(sess, protocol.MsgConnectionEstablished, protocol.ConnectionEstablished{PlayerID: sess.ID})
	return sess
}

// HandleMessage dispatches one raw inbound frame for sess.
//
// A frame that does not decode as an envelope gets a single error reply and
// changes nothing. A session that is no longer registered (removed by a
// racing leave or reap) is a silent no-op.
func (r *Router) HandleMessage(sess *session.Session, raw []byte) {
	if _, ok := r.registry.Get(sess.ID); !ok {
		return
	}

	env, err := protocol.Decode(raw)
	if err != nil {
		r.logger.Debug("malformed envelope",
			zap.String("player_id", sess.ID),
			zap.Error(err),
		)
		r.sendError(sess, "invalid message")
		return
	}

	// Any successfully parsed envelope counts as activity, whatever its type.
	sess.Touch(r.now())

	switch env.Type {
	case protocol.MsgPlayerJoin:
		r.handleJoin(sess, env.Data)
	case protocol.MsgPlayerLeave:
		r.handleLeave(sess)
	case protocol.MsgChatMessage:
		r.handleChat(sess, env.Data)
	case protocol.MsgPlayerMove:
		r.handleMove(sess, env.Data)
	default:
		r.sendError(sess, fmt.Sprintf("unknown message type %q", env.Type))
	}
}

// handleJoin activates the session with the client-declared profile. The
// server-assigned id and join time overwrite anything the client supplied.
func (r *Router) handleJoin(sess *session.Session, data json.RawMessage) {
	profile := session.Profile{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &profile); err != nil {
			r.sendError(sess, "invalid join data")
			return
		}
	}

	if loc, ok := profile["location"].(string); ok && loc != "" {
		sess.SetLocation(loc)
	}

	profile["id"] = sess.ID
	profile["joinTime"] = r.now().UnixMilli()
	sess.SetProfile(profile)

	location := sess.Location()

	r.logger.Info("player joined",
		zap.String("player_id", sess.ID),
		zap.String("nickname", sess.Nickname()),
		zap.String("location", location),
	)

	// The session is active and registered before either snapshot below is
	// computed, so it is visible to others as soon as it can see them.
	others := r.registry.ActiveInLocation(location, sess.ID)
	list := make([]session.Profile, 0, len(others))
	for _, other := range others {
		list = append(list, other.Profile())
	}
	r.SendTo(sess, protocol.MsgPlayerList, list)

	r.Broadcast(location, protocol.MsgPlayerJoined, profile, sess.ID)
}

// handleLeave announces the departure and removes the session. The transport
// stays open; any later message from it is an unknown-session no-op. A leave
// from an unjoined session changes nothing.
func (r *Router) handleLeave(sess *session.Session) {
	if !sess.Active() {
		return
	}
	if !r.registry.Remove(sess.ID) {
		return
	}

	r.logger.Info("player left",
		zap.String("player_id", sess.ID),
		zap.String("nickname", sess.Nickname()),
	)

	r.Broadcast(sess.Location(), protocol.MsgPlayerLeft, protocol.PlayerLeft{
		ID:       sess.ID,
		Nickname: sess.Nickname(),
	}, sess.ID)
}

func (r *Router) handleChat(sess *session.Session, data json.RawMessage) {
	if !sess.Active() {
		return
	}

	var req protocol.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		r.sendError(sess, "invalid chat data")
		return
	}

	text, ok := protocol.SanitizeChat(req.Text)
	if !ok {
		// Whitespace-only chat is dropped, not an error.
		return
	}

	r.Broadcast(sess.Location(), protocol.MsgChatMessage, protocol.ChatBroadcast{
		PlayerID:  sess.ID,
		Username:  sess.Username(),
		Nickname:  sess.Nickname(),
		Text:      text,
		Timestamp: r.now().UnixMilli(),
	}, sess.ID)
}

func (r *Router) handleMove(sess *session.Session, data json.RawMessage) {
	if !sess.Active() {
		return
	}

	var req protocol.MoveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		r.sendError(sess, "invalid move data")
		return
	}

	x := protocol.ClampCoord(protocol.ParseCoord(req.X))
	y := protocol.ClampCoord(protocol.ParseCoord(req.Y))
	sess.SetPosition(x, y)

	r.Broadcast(sess.Location(), protocol.MsgPlayerMoved, protocol.PlayerMoved{
		ID: sess.ID,
		X:  x,
		Y:  y,
	}, sess.ID)
}

// SendTo serializes and writes one message to a single session. A transport
// that is closed or refuses the write is treated as an abrupt disconnect.
func (r *Router) SendTo(sess *session.Session, t protocol.MessageType, data any) {
	if !sess.Transport.IsOpen() {
		r.Disconnect(sess)
		return
	}

	raw, err := protocol.Encode(t, data)
	if err != nil {
		r.logger.Error("encoding outbound message",
			zap.String("type", string(t)),
			zap.Error(err),
		)
		return
	}

	if err := sess.Transport.Send(raw); err != nil {
		r.logger.Warn("send failed, dropping connection",
			zap.String("player_id", sess.ID),
			zap.String("type", string(t)),
			zap.Error(err),
		)
		r.Disconnect(sess)
	}
}

// Broadcast sends a message to every active session in the location except
// excludeID. One recipient's failure never blocks the rest.
func (r *Router) Broadcast(location string, t protocol.MessageType, data any, excludeID string) {
	for _, recipient := range r.registry.ActiveInLocation(location, excludeID) {
		r.SendTo(recipient, t, data)
	}
}

// Disconnect runs the abrupt-disconnect cleanup path: remove from the
// registry, close the transport, and announce the departure if the session
// had joined. Calling it twice for the same session announces at most once.
func (r *Router) Disconnect(sess *session.Session) {
	if !r.registry.Remove(sess.ID) {
		return
	}
	_ = sess.Transport.Close()

	r.logger.Info("client disconnected",
		zap.String("player_id", sess.ID),
		zap.Bool("joined", sess.Active()),
	)

	if sess.Active() {
		r.Broadcast(sess.Location(), protocol.MsgPlayerLeft, protocol.PlayerLeft{
			ID:       sess.ID,
			Nickname: sess.Nickname(),
		}, sess.ID)
	}
}

// Shutdown sends a best-effort shutdown notice to every connected session,
// joined or not. Delivery is advisory; failures are ignored.
func (r *Router) Shutdown() {
	raw, err := protocol.Encode(protocol.MsgServerShutdown, protocol.ServerShutdown{
		Message: "server shutting down",
	})
	if err != nil {
		return
	}

	sessions := r.registry.All()
	for _, sess := range sessions {
		if sess.Transport.IsOpen() {
			_ = sess.Transport.Send(raw)
		}
	}

	r.logger.Info("shutdown notice sent", zap.Int("sessions", len(sessions)))
}

func (r *Router) sendError(sess *session.Session, msg string) {
	r.SendTo(sess, protocol.MsgError, protocol.ErrorMessage{Message: msg})
}
