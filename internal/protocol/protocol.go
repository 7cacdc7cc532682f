// Package protocol defines the JSON messages exchanged with the arena server.
// Every frame is an envelope {"type": kind, "data": payload}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound message kinds
const (
	KindJoined          = "joined"
	KindError           = "error"
	KindState           = "state"
	KindEvent           = "event"
	KindPlayerAnimation = "playerAnimation"
)

// Outbound message kinds
const (
	KindJoin  = "join"
	KindInput = "input"
	KindLeave = "leave"
)

// Event types carried inside an "event" message
const (
	EventMatchEnd          = "matchEnd"
	EventQuadrantHighlight = "quadrantHighlight"
	EventRolesRotated      = "rolesRotated"
)

// Player actions. Kick and head have pose animations; serve does not.
const (
	ActionKick  = "kick"
	ActionHead  = "head"
	ActionServe = "serve"
)

// MaxMessageSize bounds a single inbound frame.
const MaxMessageSize = 1 << 20

// ErrUnknownKind is returned when an envelope carries an unrecognized type.
var ErrUnknownKind = errors.New("protocol: unknown message kind")

// Envelope is the outer frame of every message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PlayerState is one player in a snapshot.
type PlayerState struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	RotY      float64 `json:"rotY"`
	Role      string  `json:"role"`
	Color     string  `json:"color"`
	Nickname  string  `json:"nickname"`
	IsJumping bool    `json:"isJumping"`
	TimeAsRey float64 `json:"timeAsRey"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	VZ        float64 `json:"vz"`
}

// BallState is the ball in a snapshot.
type BallState struct {
	X                  float64 `json:"x"`
	Y                  float64 `json:"y"`
	Z                  float64 `json:"z"`
	VX                 float64 `json:"vx"`
	VY                 float64 `json:"vy"`
	VZ                 float64 `json:"vz"`
	LastTouchedBy      string  `json:"lastTouchedBy"`
	LastBounceQuadrant string  `json:"lastBounceQuadrant"`
	LastBounceTime     float64 `json:"lastBounceTime"`
}

// Snapshot is the full authoritative world state.
type Snapshot struct {
	Players         map[string]PlayerState `json:"players"`
	Ball            BallState              `json:"ball"`
	MatchTime       float64                `json:"matchTime"`
	MatchDuration   float64                `json:"matchDuration"`
	MatchStarted    bool                   `json:"matchStarted"`
	MatchEnded      bool                   `json:"matchEnded"`
	WaitingForServe bool                   `json:"waitingForServe"`
	CurrentServer   string                 `json:"currentServer"`
}

// Standing is one leaderboard row in a match end event.
type Standing struct {
	ID        string  `json:"id"`
	Nickname  string  `json:"nickname"`
	TimeAsRey float64 `json:"timeAsRey"`
}

// Event is a discrete server notification.
type Event struct {
	Type string `json:"type"`

	// quadrantHighlight
	Role  string `json:"role,omitempty"`
	Color string `json:"color,omitempty"`

	// rolesRotated, player id to new role when the server includes it
	Roles map[string]string `json:"roles,omitempty"`

	// matchEnd
	Leaderboard []Standing `json:"leaderboard,omitempty"`
}

// PlayerAnimation asks every client to play an action on a player.
type PlayerAnimation struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
}

// InputPayload is the staged input sent upstream. Move is [x, y] in [-1,1].
// An empty Action is sent as null.
type InputPayload struct {
	Move   [2]float64
	Jump   bool
	Action string
}

type inputWire struct {
	Move   [2]float64 `json:"move"`
	Jump   bool       `json:"jump"`
	Action *string    `json:"action"`
}

// MarshalJSON implements json.Marshaler.
func (p InputPayload) MarshalJSON() ([]byte, error) {
	w := inputWire{Move: p.Move, Jump: p.Jump}
	if p.Action != "" {
		w.Action = &p.Action
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *InputPayload) UnmarshalJSON(data []byte) error {
	var w inputWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Move, p.Jump, p.Action = w.Move, w.Jump, ""
	if w.Action != nil {
		p.Action = *w.Action
	}
	return nil
}

// Join is sent once after dialing.
type Join struct {
	Nickname string `json:"nickname"`
}

// Joined carries the local session id.
type Joined struct {
	SessionID string `json:"sessionId"`
}

// ErrorMessage is a server-side rejection or failure.
type ErrorMessage struct {
	Message string `json:"message"`
}

// Leave is sent before closing.
type Leave struct{}

// Encode wraps payload in an envelope of the given kind.
func Encode(kind string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", kind, err)
		}
		env.Data = data
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out, nil
}

// Decode parses an envelope. Unrecognized kinds return the envelope together
// with ErrUnknownKind so callers may still forward it.
func Decode(data []byte) (Envelope, error) {
	if len(data) > MaxMessageSize {
		return Envelope{}, fmt.Errorf("message too large: %d > %d", len(data), MaxMessageSize)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	if !known(env.Type) {
		return env, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	return env, nil
}

// DecodeSnapshot decodes a state payload. A null player map becomes empty.
func DecodeSnapshot(data json.RawMessage) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Players == nil {
		s.Players = map[string]PlayerState{}
	}
	return &s, nil
}

// DecodeEvent decodes an event payload.
func DecodeEvent(data json.RawMessage) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}

// DecodePlayerAnimation decodes a playerAnimation payload.
func DecodePlayerAnimation(data json.RawMessage) (*PlayerAnimation, error) {
	var a PlayerAnimation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode playerAnimation: %w", err)
	}
	return &a, nil
}

// DecodeJoined decodes a joined payload.
func DecodeJoined(data json.RawMessage) (*Joined, error) {
	var j Joined
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode joined: %w", err)
	}
	if j.SessionID == "" {
		return nil, fmt.Errorf("decode joined: empty session id")
	}
	return &j, nil
}

// DecodeError decodes an error payload.
func DecodeError(data json.RawMessage) (*ErrorMessage, error) {
	var e ErrorMessage
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	return &e, nil
}

func known(kind string) bool {
	switch kind {
	case KindJoined, KindError, KindState, KindEvent, KindPlayerAnimation,
		KindJoin, KindInput, KindLeave:
		return true
	}
	return false
}
