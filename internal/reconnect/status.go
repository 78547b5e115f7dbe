package reconnect

import "github.com/nullspace-games/tablelink/internal/transport"

// Status is the unified connectivity status exposed to the rest of the app.
type Status int

const (
	// StatusConnected indicates a live gateway session on a usable network.
	StatusConnected Status = iota
	// StatusConnecting indicates a fresh connect attempt (not a retry).
	StatusConnecting
	// StatusReconnecting indicates the transport is retrying after a drop.
	StatusReconnecting
	// StatusOffline indicates the network itself is unreachable.
	StatusOffline
	// StatusFailed indicates the transport exhausted its retry budget.
	StatusFailed
	// StatusDisconnected indicates a user-initiated disconnect or true idle.
	StatusDisconnected
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusConnecting:
		return "connecting"
	case StatusReconnecting:
		return "reconnecting"
	case StatusOffline:
		return "offline"
	case StatusFailed:
		return "failed"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DeriveStatus computes the unified status from its four inputs.
//
// Precedence, evaluated in order: a dead network wins over everything,
// then a user-initiated disconnect, then the transport state mapping.
func DeriveStatus(netOnline, manual bool, ts transport.State, attempts int) Status {
	if !netOnline {
		return StatusOffline
	}
	if manual {
		return StatusDisconnected
	}

	switch ts {
	case transport.StateConnected:
		return StatusConnected
	case transport.StateConnecting:
		if attempts > 0 {
			return StatusReconnecting
		}
		return StatusConnecting
	case transport.StateFailed:
		return StatusFailed
	case transport.StateDisconnected:
		if attempts > 0 {
			return StatusReconnecting
		}
		return StatusDisconnected
	default:
		return StatusDisconnected
	}
}
