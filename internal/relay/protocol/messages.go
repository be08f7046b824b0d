// Package protocol defines the wire envelope and payloads exchanged with
// game clients, plus the parsing rules for client-supplied values.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MessageType identifies the kind of message sent over the wire.
type MessageType string

const (
	// Client -> Server messages
	MsgPlayerJoin  MessageType = "player_join"
	MsgPlayerLeave MessageType = "player_leave"
	MsgChatMessage MessageType = "chat_message"
	MsgPlayerMove  MessageType = "player_move"

	// Server -> Client messages
	MsgConnectionEstablished MessageType = "connection_established"
	MsgPlayerList            MessageType = "player_list"
	MsgPlayerJoined          MessageType = "player_joined"
	MsgPlayerLeft            MessageType = "player_left"
	MsgPlayerMoved           MessageType = "player_moved"
	MsgError                 MessageType = "error"
	MsgServerShutdown        MessageType = "server_shutdown"
)

// Coordinate bounds for player positions.
const (
	CoordMin = 0.0
	CoordMax = 100.0
)

// MaxChatLength is the maximum chat text length in runes; longer texts are
// truncated, never rejected.
const MaxChatLength = 200

// Envelope is the top-level wire format for all messages.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses a raw frame into an Envelope.
//
// Postcondition: Returns an error if the frame is not a JSON object with a
// non-empty string "type".
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("parsing envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	return env, nil
}

// Encode marshals a typed payload wrapped in an Envelope.
//
// Postcondition: Returns the serialized frame or an error if data cannot be
// marshalled.
func Encode(t MessageType, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s data: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Data: payload})
}

// --- Client -> Server payloads ---

// ChatRequest carries the text of an inbound chat message.
type ChatRequest struct {
	Text string `json:"text"`
}

// MoveRequest carries a requested position. Coordinates may arrive as JSON
// numbers or numeric strings; anything else parses as 0.
type MoveRequest struct {
	X any `json:"x"`
	Y any `json:"y"`
}

// --- Server -> Client payloads ---

// ConnectionEstablished is sent once when a client connects, carrying the
// server-assigned player id.
type ConnectionEstablished struct {
	PlayerID string `json:"playerId"`
}

// ChatBroadcast is the room-scoped fan-out of a chat message.
type ChatBroadcast struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// PlayerMoved is the room-scoped fan-out of a position update.
type PlayerMoved struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PlayerLeft announces a departure to the remaining room occupants.
type PlayerLeft struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// ErrorMessage is the only failure surfaced to a client.
type ErrorMessage struct {
	Message string `json:"message"`
}

// ServerShutdown is the advisory notice sent on process termination.
type ServerShutdown struct {
	Message string `json:"message"`
}

// ParseCoord converts a client-supplied coordinate value to a float64.
// Numbers and numeric strings are accepted; anything unparsable yields 0.
func ParseCoord(v any) float64 {
	switch c := v.(type) {
	case float64:
		return c
	case float32:
		return float64(c)
	case int:
		return float64(c)
	case int64:
		return float64(c)
	case json.Number:
		f, err := c.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// ClampCoord bounds a coordinate to [CoordMin, CoordMax]. NaN clamps to 0.
func ClampCoord(f float64) float64 {
	if math.IsNaN(f) {
		return CoordMin
	}
	if f < CoordMin {
		return CoordMin
	}
	if f > CoordMax {
		return CoordMax
	}
	return f
}

// SanitizeChat trims surrounding whitespace and truncates to MaxChatLength
// runes. The second return is false when nothing remains after trimming.
func SanitizeChat(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	runes := []rune(trimmed)
	if len(runes) > MaxChatLength {
		trimmed = string(runes[:MaxChatLength])
	}
	return trimmed, true
}
