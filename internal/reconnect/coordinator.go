package reconnect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nullspace-games/tablelink/internal/health"
	"github.com/nullspace-games/tablelink/internal/transport"
)

// Link is the coordinator's view of the gateway transport.
// *transport.client satisfies it; tests substitute fakes.
type Link interface {
	State() transport.State
	ReconnectAttempt() int
	MaxReconnectAttempts() int
	NextRetryAt() (time.Time, bool)
	Reconnect()
	Disconnect()
	StateChanges() <-chan transport.StateChange
}

// Network is the coordinator's view of the health monitor.
type Network interface {
	Status() health.Status
	Updates() <-chan health.Status
	CheckNow(ctx context.Context) health.Status
	ResetFailures()
	SetForeground(fg bool)
}

// Config holds reconnection coordinator settings.
type Config struct {
	// StabilizationDelay is the wait after network recovery before
	// commanding a reconnect, so a still-settling network stack is not
	// dialed into.
	StabilizationDelay time.Duration

	// CountdownTick is the refresh cadence of NextReconnectIn.
	CountdownTick time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StabilizationDelay: 500 * time.Millisecond,
		CountdownTick:      1 * time.Second,
	}
}

// State is the coordinator's read model. It is recomputed on demand; UI
// code never mutates it.
type State struct {
	Status               Status
	Network              health.Status
	ReconnectAttempt     int
	MaxReconnectAttempts int

	// NextReconnectIn is whole seconds until the transport's next retry,
	// nil when no retry is pending or it is not user-relevant.
	NextReconnectIn *int

	LastConnectedAt time.Time

	// DisconnectedFor is how long the session has been down, nil while
	// connected. Computed at read time from LastConnectedAt.
	DisconnectedFor *time.Duration
}

// loopEvent asks the run loop to do something on its own goroutine.
type loopEvent int

const (
	evRecompute loopEvent = iota
	evCancelStabilize
)

// Coordinator owns the transport lifecycle decisions: it combines network
// health with raw transport state into the unified Status, reacts to
// foreground transitions, and reconstructs the retry countdown for display.
//
// The transport handle is exclusively owned here; nothing else commands it.
// All state publication happens on a single run goroutine, so observers see
// transitions serialized.
type Coordinator struct {
	cfg    Config
	link   Link
	net    Network
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	events  chan loopEvent
	updates chan State

	mu              sync.RWMutex
	manual          bool
	lastConnectedAt time.Time
	started         bool
}

// New creates a reconnection coordinator.
func New(cfg Config, link Link, net Network, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		cfg:     cfg,
		link:    link,
		net:     net,
		logger:  logger,
		events:  make(chan loopEvent, 8),
		updates: make(chan State, 4),
	}
}

// Start begins the coordination loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	return nil
}

// Close stops the coordination loop and cancels every pending timer.
func (c *Coordinator) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// Updates returns coalesced state snapshots, emitted after every
// recomputation. Latest-wins on a slow consumer.
func (c *Coordinator) Updates() <-chan State {
	return c.updates
}

// Status returns the current unified status.
func (c *Coordinator) Status() Status {
	return c.State().Status
}

// State recomputes and returns the full read model.
func (c *Coordinator) State() State {
	netStatus := c.net.Status()
	ts := c.link.State()
	attempts := c.link.ReconnectAttempt()

	c.mu.RLock()
	manual := c.manual
	last := c.lastConnectedAt
	c.mu.RUnlock()

	st := State{
		Status:               DeriveStatus(netStatus.IsOnline(), manual, ts, attempts),
		Network:              netStatus,
		ReconnectAttempt:     attempts,
		MaxReconnectAttempts: c.link.MaxReconnectAttempts(),
		LastConnectedAt:      last,
	}

	if st.Status != StatusConnected && !last.IsZero() {
		d := time.Since(last)
		st.DisconnectedFor = &d
	}

	if st.Status == StatusReconnecting {
		if target, ok := c.link.NextRetryAt(); ok {
			secs := int((time.Until(target) + time.Second - 1) / time.Second)
			if secs < 0 {
				secs = 0
			}
			st.NextReconnectIn = &secs
		}
	}

	return st
}

// Disconnect pins the status to disconnected and stops all automatic
// reconnection until ReconnectNow or ResetAndReconnect is called.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.mu.Unlock()

	c.post(evCancelStabilize)
	c.link.Disconnect()
	c.logger.Info("user disconnect")
	c.post(evRecompute)
}

// ReconnectNow clears the manual-disconnect flag and commands an
// immediate reconnect.
func (c *Coordinator) ReconnectNow() {
	c.mu.Lock()
	c.manual = false
	c.mu.Unlock()

	c.post(evCancelStabilize)
	c.link.Reconnect()
	c.logger.Info("user reconnect")
	c.post(evRecompute)
}

// ResetAndReconnect resets the health monitor's failure counter first,
// then reconnects immediately.
func (c *Coordinator) ResetAndReconnect() {
	c.net.ResetFailures()
	c.ReconnectNow()
}

// CheckNetwork performs one health probe. It always resolves; probe
// failures surface as status, never as an error.
func (c *Coordinator) CheckNetwork(ctx context.Context) health.Status {
	s := c.net.CheckNow(ctx)
	c.post(evRecompute)
	return s
}

// SetForeground reports app foreground/background transitions. The
// foreground edge covers sockets silently dropped while backgrounded:
// if the network is up, nothing is in flight, and the user did not
// disconnect, a reconnect is commanded.
func (c *Coordinator) SetForeground(fg bool) {
	c.net.SetForeground(fg)

	if fg && c.shouldKickReconnect() {
		c.logger.Info("foreground resume, commanding reconnect")
		c.link.Reconnect()
	}
	c.post(evRecompute)
}

// shouldKickReconnect reports whether an automatic reconnect command is
// warranted: network up, no manual disconnect, transport idle. A failed
// transport is deliberately excluded; failed is terminal until an
// explicit user action.
func (c *Coordinator) shouldKickReconnect() bool {
	c.mu.RLock()
	manual := c.manual
	c.mu.RUnlock()

	if manual || !c.net.Status().IsOnline() {
		return false
	}

	switch c.link.State() {
	case transport.StateConnected, transport.StateConnecting, transport.StateFailed:
		return false
	default:
		return true
	}
}

// post sends an event to the run loop without blocking.
func (c *Coordinator) post(ev loopEvent) {
	select {
	case c.events <- ev:
	default:
	}
}

// run is the coordination loop. It is the only goroutine that touches
// the stabilization timer and the countdown ticker, and the only place
// state snapshots are published.
func (c *Coordinator) run() {
	defer c.wg.Done()

	var stabilize *time.Timer
	var stabilizeC <-chan time.Time
	stopStabilize := func() {
		if stabilize != nil {
			stabilize.Stop()
			stabilize, stabilizeC = nil, nil
		}
	}
	defer stopStabilize()

	tick := time.NewTicker(c.cfg.CountdownTick)
	defer tick.Stop()

	prevNet := c.net.Status()

	for {
		select {
		case <-c.ctx.Done():
			return

		case ns := <-c.net.Updates():
			wasOnline := prevNet.IsOnline()
			prevNet = ns

			if !ns.IsOnline() {
				// While offline any pending stabilization is moot.
				stopStabilize()
				c.logger.Warn("network offline")
			} else if !wasOnline {
				c.mu.RLock()
				manual := c.manual
				c.mu.RUnlock()
				if !manual {
					// Let the network stack settle before dialing into it.
					stopStabilize()
					stabilize = time.NewTimer(c.cfg.StabilizationDelay)
					stabilizeC = stabilize.C
					c.logger.Info("network recovered, stabilizing",
						"delay", c.cfg.StabilizationDelay,
					)
				}
			}
			c.publish()

		case <-stabilizeC:
			stabilize, stabilizeC = nil, nil
			if c.shouldKickReconnect() {
				c.logger.Info("network stabilized, commanding reconnect")
				c.link.Reconnect()
			}
			c.publish()

		case ev := <-c.link.StateChanges():
			now := time.Now()
			if ev.New == transport.StateConnected || ev.Old == transport.StateConnected {
				// Entering connected stamps the session start; leaving it
				// stamps the moment of loss, which DisconnectedFor counts from.
				c.mu.Lock()
				c.lastConnectedAt = now
				c.mu.Unlock()
			}
			if ev.New == transport.StateFailed && c.net.Status().IsOnline() {
				c.logger.Error("transport failed, manual retry required",
					"attempts", ev.Attempt,
				)
			}
			c.publish()

		case <-tick.C:
			// Refresh the countdown display while a retry is pending.
			if c.link.ReconnectAttempt() > 0 {
				c.publish()
			}

		case ev := <-c.events:
			if ev == evCancelStabilize {
				stopStabilize()
			}
			c.publish()
		}
	}
}

// publish emits a fresh snapshot, latest-wins.
func (c *Coordinator) publish() {
	st := c.State()
	select {
	case c.updates <- st:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- st:
		default:
		}
	}
}
