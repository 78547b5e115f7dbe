package readonly

import (
	"context"
	"sync"
	"time"

	"github.com/nullspace-games/tablelink/internal/health"
	"github.com/nullspace-games/tablelink/internal/reconnect"
)

// Reason says why submissions are blocked. ReasonNone means they are not.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonOffline
	ReasonReconnecting
	ReasonFailed
	ReasonConnecting
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonOffline:
		return "offline"
	case ReasonReconnecting:
		return "reconnecting"
	case ReasonFailed:
		return "failed"
	case ReasonConnecting:
		return "connecting"
	default:
		return "unknown"
	}
}

// ReasonFor maps a unified status to a read-only reason. Total and
// exhaustive: connected and disconnected are the two statuses that do
// not gate submissions. A manually disconnected user keeps a normal UI
// and gets feedback from the send failure instead.
func ReasonFor(s reconnect.Status) Reason {
	switch s {
	case reconnect.StatusConnected:
		return ReasonNone
	case reconnect.StatusDisconnected:
		return ReasonNone
	case reconnect.StatusOffline:
		return ReasonOffline
	case reconnect.StatusReconnecting:
		return ReasonReconnecting
	case reconnect.StatusFailed:
		return ReasonFailed
	case reconnect.StatusConnecting:
		return ReasonConnecting
	default:
		return ReasonNone
	}
}

// User-facing copy, two registers: a full sentence for banners and a
// short phrase for status chips.
var (
	messages = map[Reason]string{
		ReasonNone:         "",
		ReasonOffline:      "You're offline. Bets are paused until your connection returns.",
		ReasonReconnecting: "Reconnecting to the table. Bets are paused for a moment.",
		ReasonFailed:       "Connection lost. Tap retry to rejoin the table.",
		ReasonConnecting:   "Connecting to the table. Hang tight.",
	}

	shortMessages = map[Reason]string{
		ReasonNone:         "",
		ReasonOffline:      "Offline",
		ReasonReconnecting: "Reconnecting…",
		ReasonFailed:       "Connection lost",
		ReasonConnecting:   "Connecting…",
	}
)

// Message returns the banner copy for a reason.
func Message(r Reason) string { return messages[r] }

// ShortMessage returns the status-chip copy for a reason.
func ShortMessage(r Reason) string { return shortMessages[r] }

// State is the gate's read model.
type State struct {
	Reason       Reason
	IsReadOnly   bool
	CanSubmit    bool
	Message      string
	ShortMessage string

	// Transition flags for animation hooks: true for the transition
	// window after the corresponding read-only edge, never both at once.
	JustEnteredReadOnly bool
	JustExitedReadOnly  bool
}

// Controller is the narrow slice of coordinator actions the gate
// forwards. The gate adds no side effects of its own.
type Controller interface {
	ReconnectNow()
	ResetAndReconnect()
	CheckNetwork(ctx context.Context) health.Status
}

// Gate derives the read-only permission from the unified status.
//
// It is a pure derivation with no goroutines and no timers: transition
// flags are computed on read from recorded edge timestamps against the
// injected clock, so the auto-clear is exact and nothing can leak.
type Gate struct {
	ctrl   Controller
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	reason    Reason
	observed  bool      // a prior observation exists; edges need a predecessor
	enteredAt time.Time // when IsReadOnly last flipped false->true
	exitedAt  time.Time // when IsReadOnly last flipped true->false
}

// NewGate creates a read-only gate. A nil clock uses time.Now.
func NewGate(ctrl Controller, window time.Duration, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		ctrl:   ctrl,
		window: window,
		now:    now,
	}
}

// Observe feeds the gate a fresh unified status. Call it on every
// coordinator update.
func (g *Gate) Observe(s reconnect.Status) {
	reason := ReasonFor(s)
	readOnly := reason != ReasonNone

	g.mu.Lock()
	defer g.mu.Unlock()

	wasReadOnly := g.reason != ReasonNone
	hadPrior := g.observed
	g.observed = true
	g.reason = reason

	if !hadPrior {
		// The very first observation has no predecessor; no edge exists.
		return
	}

	switch {
	case readOnly && !wasReadOnly:
		g.enteredAt = g.now()
		g.exitedAt = time.Time{}
	case !readOnly && wasReadOnly:
		g.exitedAt = g.now()
		g.enteredAt = time.Time{}
	}
}

// State returns the current read model.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	readOnly := g.reason != ReasonNone

	return State{
		Reason:              g.reason,
		IsReadOnly:          readOnly,
		CanSubmit:           !readOnly,
		Message:             messages[g.reason],
		ShortMessage:        shortMessages[g.reason],
		JustEnteredReadOnly: !g.enteredAt.IsZero() && now.Sub(g.enteredAt) < g.window,
		JustExitedReadOnly:  !g.exitedAt.IsZero() && now.Sub(g.exitedAt) < g.window,
	}
}

// CanSubmit reports whether user actions may be submitted right now.
func (g *Gate) CanSubmit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason == ReasonNone
}

// Reconnect forwards to the coordinator.
func (g *Gate) Reconnect() { g.ctrl.ReconnectNow() }

// ResetAndReconnect forwards to the coordinator.
func (g *Gate) ResetAndReconnect() { g.ctrl.ResetAndReconnect() }

// CheckNetwork forwards to the coordinator.
func (g *Gate) CheckNetwork(ctx context.Context) health.Status {
	return g.ctrl.CheckNetwork(ctx)
}
