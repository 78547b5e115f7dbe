package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nullspace-games/tablelink/internal/backoff"
)

// Transport is the bidirectional JSON message channel to the gateway.
// It owns the socket lifecycle and the retry timer; callers observe state
// through StateChanges and the read accessors.
type Transport interface {
	// Start begins the connect/retry loop.
	Start(ctx context.Context) error

	// Close tears the transport down and releases all goroutines.
	Close() error

	// Send marshals v to JSON and writes it to the gateway.
	Send(v any) error

	// Reconnect resets the retry budget and connects immediately.
	// It is the only way out of StateFailed.
	Reconnect()

	// Disconnect closes the socket and suspends the retry loop until
	// Reconnect is called.
	Disconnect()

	// Messages returns the stream of parsed gateway messages.
	Messages() <-chan Message

	// StateChanges returns transport state transition events.
	StateChanges() <-chan StateChange

	// State returns the current transport state.
	State() State

	// ReconnectAttempt returns the current reconnect attempt count.
	// Zero means the next connect is a fresh one, not a retry.
	ReconnectAttempt() int

	// MaxReconnectAttempts returns the configured retry budget.
	MaxReconnectAttempts() int

	// NextRetryAt returns the wall-clock target of the pending retry,
	// if one is scheduled.
	NextRetryAt() (time.Time, bool)
}

// serveReason says why a live connection ended.
type serveReason int

const (
	serveShutdown serveReason = iota
	serveDisconnect
	serveReconnect
	serveError
)

// client implements Transport over gorilla/websocket.
type client struct {
	cfg    Config
	logger *slog.Logger

	messages chan Message
	states   chan StateChange

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	reconnectCh  chan struct{}
	disconnectCh chan struct{}

	// Write serialization
	writeMu sync.Mutex

	mu          sync.RWMutex
	state       State
	attempt     int
	nextRetryAt time.Time
	conn        *websocket.Conn
	closed      bool
	started     bool
}

// NewClient creates a gateway transport. It does not connect until Start.
func NewClient(cfg Config, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		cfg:          cfg,
		logger:       logger,
		messages:     make(chan Message, cfg.BufferSize),
		states:       make(chan StateChange, 32),
		reconnectCh:  make(chan struct{}, 1),
		disconnectCh: make(chan struct{}, 1),
	}
}

// Start begins the connect/retry loop.
func (c *client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	return nil
}

// Close tears down the transport.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	conn := c.conn
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
	if started {
		c.wg.Wait()
	}

	close(c.messages)
	close(c.states)

	return nil
}

// Send marshals v to JSON and writes it to the gateway.
func (c *client) Send(v any) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Reconnect resets the retry budget and connects immediately.
func (c *client) Reconnect() {
	c.mu.Lock()
	c.attempt = 0
	c.nextRetryAt = time.Time{}
	conn := c.conn
	c.mu.Unlock()

	select {
	case c.reconnectCh <- struct{}{}:
	default:
	}

	// A live socket is dropped so the loop can dial fresh.
	if conn != nil {
		conn.Close()
	}
}

// Disconnect closes the socket and suspends the retry loop.
func (c *client) Disconnect() {
	c.mu.Lock()
	c.attempt = 0
	c.nextRetryAt = time.Time{}
	conn := c.conn
	c.mu.Unlock()

	select {
	case c.disconnectCh <- struct{}{}:
	default:
	}

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
}

// Messages returns the stream of parsed gateway messages.
func (c *client) Messages() <-chan Message {
	return c.messages
}

// StateChanges returns transport state transition events.
func (c *client) StateChanges() <-chan StateChange {
	return c.states
}

// State returns the current transport state.
func (c *client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ReconnectAttempt returns the current reconnect attempt count.
func (c *client) ReconnectAttempt() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempt
}

// MaxReconnectAttempts returns the configured retry budget.
func (c *client) MaxReconnectAttempts() int {
	return c.cfg.MaxReconnectAttempts
}

// NextRetryAt returns the wall-clock target of the pending retry.
func (c *client) NextRetryAt() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.nextRetryAt.IsZero() {
		return time.Time{}, false
	}
	return c.nextRetryAt, true
}

// run is the supervisor loop: dial, serve, schedule retries.
func (c *client) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if attempt := c.ReconnectAttempt(); attempt > 0 {
			if attempt > c.cfg.MaxReconnectAttempts {
				c.logger.Warn("reconnect budget exhausted",
					"attempts", c.cfg.MaxReconnectAttempts,
				)
				c.setState(StateFailed)
				if !c.awaitManualRestart() {
					return
				}
				continue
			}

			delay := backoff.Delay(c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay, attempt)
			if !c.waitRetry(delay) {
				continue
			}
		}

		c.setState(StateConnecting)

		conn, err := c.dial()
		if err != nil {
			c.logger.Warn("connect attempt failed",
				"attempt", c.ReconnectAttempt(),
				"error", err,
			)
			c.setState(StateDisconnected)
			c.bumpAttempt()
			continue
		}

		link := c.adoptConn(conn)
		c.setState(StateConnected)
		c.logger.Info("gateway connected", "url", c.cfg.URL)

		reason := c.serveConn(link)
		c.dropConn(link)

		switch reason {
		case serveShutdown:
			return
		case serveDisconnect:
			c.setState(StateDisconnected)
			if !c.awaitManualRestart() {
				return
			}
		case serveReconnect:
			c.setState(StateDisconnected)
			// attempt already reset by Reconnect; dial immediately
		case serveError:
			c.setState(StateDisconnected)
			c.setAttempt(1)
		}
	}
}

// dial performs a single connect attempt.
func (c *client) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	return conn, err
}

// waitRetry sleeps until the scheduled retry target.
// Returns false when the wait was interrupted and the loop should
// re-evaluate from the top.
func (c *client) waitRetry(delay time.Duration) bool {
	c.mu.Lock()
	c.nextRetryAt = time.Now().Add(delay)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.nextRetryAt = time.Time{}
		c.mu.Unlock()
	}()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case <-c.reconnectCh:
		// Manual reconnect: attempt counter already reset, dial now.
		return true
	case <-c.disconnectCh:
		c.setState(StateDisconnected)
		if !c.awaitManualRestart() {
			return false
		}
		return false
	case <-timer.C:
		return true
	}
}

// awaitManualRestart blocks until Reconnect is called.
// Returns false on shutdown.
func (c *client) awaitManualRestart() bool {
	for {
		select {
		case <-c.ctx.Done():
			return false
		case <-c.reconnectCh:
			return true
		case <-c.disconnectCh:
			// Already idle; a repeated disconnect pins state.
			c.setState(StateDisconnected)
		}
	}
}

// link bundles the per-connection goroutine state.
type link struct {
	conn  *websocket.Conn
	errCh chan error
	done  chan struct{}

	mu       sync.Mutex
	lastSeen time.Time
}

func (l *link) touch() {
	l.mu.Lock()
	l.lastSeen = time.Now()
	l.mu.Unlock()
}

func (l *link) sinceSeen() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Since(l.lastSeen)
}

// adoptConn installs a fresh connection and starts its pumps.
func (c *client) adoptConn(conn *websocket.Conn) *link {
	l := &link{
		conn:     conn,
		errCh:    make(chan error, 1),
		done:     make(chan struct{}),
		lastSeen: time.Now(),
	}

	conn.SetPingHandler(func(data string) error {
		l.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})
	conn.SetPongHandler(func(string) error {
		l.touch()
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.attempt = 0
	c.nextRetryAt = time.Time{}
	c.mu.Unlock()

	// A reconnect commanded before the dial finished wanted a fresh
	// connection, and this is it. Drop the stale token so serveConn does
	// not tear the new link down for it.
	select {
	case <-c.reconnectCh:
	default:
	}

	c.wg.Add(2)
	go c.readLoop(l)
	go c.heartbeatLoop(l)

	return l
}

// dropConn stops the pumps and clears the connection handle.
func (c *client) dropConn(l *link) {
	close(l.done)
	l.conn.Close()

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
}

// serveConn blocks while a connection is live.
func (c *client) serveConn(l *link) serveReason {
	select {
	case <-c.ctx.Done():
		return serveShutdown
	case <-c.disconnectCh:
		return serveDisconnect
	case <-c.reconnectCh:
		return serveReconnect
	case err := <-l.errCh:
		// Disconnect and Reconnect close the socket after signaling, so the
		// read error can race the control signal. Prefer the signal.
		select {
		case <-c.disconnectCh:
			return serveDisconnect
		default:
		}
		select {
		case <-c.reconnectCh:
			return serveReconnect
		default:
		}
		c.logger.Warn("gateway link lost", "error", err)
		return serveError
	}
}

// readLoop reads messages and forwards parsed envelopes.
func (c *client) readLoop(l *link) {
	defer c.wg.Done()

	for {
		select {
		case <-l.done:
			return
		default:
		}

		_, data, err := l.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-l.done:
			default:
				select {
				case l.errCh <- err:
				default:
				}
			}
			return
		}

		l.touch()

		var env messageEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("unparseable gateway message, dropping", "error", err)
			continue
		}

		msg := Message{
			Type:       env.Type,
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case c.messages <- msg:
		case <-l.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message", "type", env.Type)
		}
	}
}

// heartbeatLoop sends keepalive pings and detects stale links.
func (c *client) heartbeatLoop(l *link) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := l.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			if l.sinceSeen() > c.cfg.StaleTimeout {
				c.logger.Warn("no traffic on link, declaring stale",
					"stale_timeout", c.cfg.StaleTimeout,
				)
				select {
				case l.errCh <- ErrStaleLink:
				default:
				}
				return
			}
		}
	}
}

// setState records a state transition and emits a change event.
func (c *client) setState(s State) {
	c.mu.Lock()
	old := c.state
	if old == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	attempt := c.attempt
	c.mu.Unlock()

	select {
	case c.states <- StateChange{Old: old, New: s, Attempt: attempt}:
	default:
		c.logger.Warn("state change buffer full, dropping event",
			"old", old, "new", s,
		)
	}
}

func (c *client) setAttempt(n int) {
	c.mu.Lock()
	c.attempt = n
	c.mu.Unlock()
}

func (c *client) bumpAttempt() {
	c.mu.Lock()
	c.attempt++
	c.mu.Unlock()
}
