package transport

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrStaleLink     = errors.New("connection stale (no ping)")
	ErrAlreadyClosed = errors.New("already closed")
)

// State is the transport-level connection state.
type State int

const (
	// StateDisconnected indicates no active connection and no attempt in flight.
	StateDisconnected State = iota
	// StateConnecting indicates a connect attempt is in flight.
	StateConnecting
	// StateConnected indicates an established gateway session.
	StateConnected
	// StateFailed indicates the retry budget is exhausted; only Reconnect recovers.
	StateFailed
)

// String returns the string representation of the transport state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message is a parsed gateway message with its type discriminator.
// Known types: session_ready, balance, game_started, game_move,
// game_result, error. Unknown types are passed through unmodified.
type Message struct {
	Type       string          // Message type discriminator
	Data       json.RawMessage // Full message body as received
	ReceivedAt time.Time       // Local timestamp when the read returned
}

// StateChange is emitted on every transport state transition.
type StateChange struct {
	Old     State
	New     State
	Attempt int // Reconnect attempt count at transition time
}

// messageEnvelope is used for fast type extraction.
type messageEnvelope struct {
	Type string `json:"type"`
}

// Config configures the gateway transport.
type Config struct {
	URL string // Gateway WebSocket URL (ws:// or wss://)

	HandshakeTimeout time.Duration // Per-attempt dial bound (slow backend registration)
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keepalive ping cadence
	StaleTimeout     time.Duration // Max silence before the link is declared stale

	ReconnectBaseDelay   time.Duration // First retry delay
	ReconnectMaxDelay    time.Duration // Retry delay cap
	MaxReconnectAttempts int           // Retry budget before StateFailed

	BufferSize int // Message channel buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:     60 * time.Second,
		WriteTimeout:         5 * time.Second,
		PingInterval:         15 * time.Second,
		StaleTimeout:         30 * time.Second,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 10,
		BufferSize:           256,
	}
}
