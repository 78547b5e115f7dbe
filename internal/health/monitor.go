package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config holds network health monitor settings.
type Config struct {
	ProbeURL     string        // Derived health endpoint (see HealthURL)
	Interval     time.Duration // Probe cadence while foregrounded
	ProbeTimeout time.Duration // Per-probe timeout, independent of transport timeouts

	UnstableThreshold int // Consecutive failures before StatusUnstable
	OfflineThreshold  int // Consecutive failures before StatusOffline

	Debounce time.Duration // Minimum spacing between applied worsening transitions
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:          10 * time.Second,
		ProbeTimeout:      5 * time.Second,
		UnstableThreshold: 2,
		OfflineThreshold:  4,
		Debounce:          1 * time.Second,
	}
}

// Snapshot is the monitor's read model.
type Snapshot struct {
	Status       Status
	FailureCount int
	LastOnlineAt time.Time
}

// Monitor answers "is the network usable" independent of the WebSocket,
// by probing the gateway's health endpoint on a fixed interval.
//
// The probe loop runs only while the app is foregrounded; backgrounding
// suspends it entirely, and the background-to-foreground edge fires an
// immediate probe so status is never stale on resume.
type Monitor struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	// Coalesces concurrent CheckNow calls into a single probe.
	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	foregroundCh chan bool
	updates      chan Status

	mu           sync.Mutex
	status       Status
	failures     int
	lastOnlineAt time.Time
	lastChangeAt time.Time
	started      bool
}

// New creates a network health monitor.
func New(cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.ProbeTimeout,
		},
		foregroundCh: make(chan bool, 4),
		updates:      make(chan Status, 4),
		status:       StatusOnline,
		lastOnlineAt: time.Now(),
	}
}

// Start begins the probe loop. The app starts foregrounded.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("health monitor started",
		"probe_url", m.cfg.ProbeURL,
		"interval", m.cfg.Interval,
	)

	return nil
}

// Stop tears the probe loop down.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Updates returns debounced status transitions. The channel is buffered
// and latest-wins: a slow consumer sees the newest status, never blocks
// the probe loop.
func (m *Monitor) Updates() <-chan Status {
	return m.updates
}

// Status returns the current network status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Snapshot returns the full read model.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Status:       m.status,
		FailureCount: m.failures,
		LastOnlineAt: m.lastOnlineAt,
	}
}

// SetForeground reports app foreground/background transitions. While
// backgrounded the probe loop is suspended; the foreground edge fires an
// immediate probe.
func (m *Monitor) SetForeground(fg bool) {
	select {
	case m.foregroundCh <- fg:
	default:
	}
}

// CheckNow performs one probe immediately and returns the resulting
// status. Concurrent callers share a single probe. It never fails: probe
// errors become failure counts, not returned errors.
func (m *Monitor) CheckNow(ctx context.Context) Status {
	v, _, _ := m.group.Do("probe", func() (any, error) {
		return m.probeOnce(ctx), nil
	})
	return v.(Status)
}

// ResetFailures zeroes the failure counter and forces status online
// without waiting for a probe. Used by user-initiated "try again".
func (m *Monitor) ResetFailures() {
	m.mu.Lock()
	old := m.status
	m.failures = 0
	m.status = StatusOnline
	m.lastOnlineAt = time.Now()
	m.lastChangeAt = time.Now()
	m.mu.Unlock()

	if old != StatusOnline {
		m.logger.Info("network status reset", "old", old, "new", StatusOnline)
		m.notify(StatusOnline)
	}
}

// run is the probe loop.
func (m *Monitor) run() {
	defer m.wg.Done()

	foreground := true
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case fg := <-m.foregroundCh:
			if fg == foreground {
				continue
			}
			foreground = fg
			if fg {
				// Resume with an immediate probe; backgrounding may have
				// silently changed the network underneath us.
				m.CheckNow(m.ctx)
				ticker.Reset(m.cfg.Interval)
			} else {
				ticker.Stop()
			}

		case <-ticker.C:
			if foreground {
				m.CheckNow(m.ctx)
			}
		}
	}
}

// probeOnce performs one HTTP probe and applies the result.
func (m *Monitor) probeOnce(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	ok := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.ProbeURL, nil)
	if err == nil {
		resp, doErr := m.httpClient.Do(req)
		if doErr == nil {
			resp.Body.Close()
			ok = resp.StatusCode >= 200 && resp.StatusCode < 300
		}
	}

	if ok {
		return m.recordSuccess()
	}
	return m.recordFailure()
}

// recordSuccess resets the counter and restores online immediately.
// The success reset is authoritative and is not debounced.
func (m *Monitor) recordSuccess() Status {
	m.mu.Lock()
	old := m.status
	m.failures = 0
	m.status = StatusOnline
	m.lastOnlineAt = time.Now()
	if old != StatusOnline {
		m.lastChangeAt = time.Now()
	}
	m.mu.Unlock()

	if old != StatusOnline {
		m.logger.Info("network recovered", "old", old)
		m.notify(StatusOnline)
	}
	return StatusOnline
}

// recordFailure advances the counter and applies the debounced
// worsening transition it implies.
func (m *Monitor) recordFailure() Status {
	m.mu.Lock()
	m.failures++
	desired := m.statusForFailures(m.failures)

	if desired == m.status {
		s := m.status
		m.mu.Unlock()
		return s
	}

	// The counter keeps advancing during the debounce window; only the
	// visible transition is held back.
	if time.Since(m.lastChangeAt) < m.cfg.Debounce {
		s := m.status
		m.mu.Unlock()
		return s
	}

	old := m.status
	m.status = desired
	m.lastChangeAt = time.Now()
	failures := m.failures
	m.mu.Unlock()

	m.logger.Warn("network status degraded",
		"old", old,
		"new", desired,
		"failures", failures,
	)
	m.notify(desired)
	return desired
}

// statusForFailures maps a consecutive-failure count to a status.
func (m *Monitor) statusForFailures(n int) Status {
	switch {
	case n >= m.cfg.OfflineThreshold:
		return StatusOffline
	case n >= m.cfg.UnstableThreshold:
		return StatusUnstable
	default:
		return StatusOnline
	}
}

// notify pushes a status transition to subscribers, latest-wins.
func (m *Monitor) notify(s Status) {
	select {
	case m.updates <- s:
	default:
		select {
		case <-m.updates:
		default:
		}
		select {
		case m.updates <- s:
		default:
		}
	}
}
