package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "ws to http", in: "ws://gateway.nullspace.live/ws", want: "http://gateway.nullspace.live/healthz"},
		{name: "wss to https", in: "wss://gateway.nullspace.live/ws/v2", want: "https://gateway.nullspace.live/healthz"},
		{name: "port preserved", in: "ws://localhost:9443/ws", want: "http://localhost:9443/healthz"},
		{name: "query stripped", in: "wss://gateway.nullspace.live/ws?token=abc", want: "https://gateway.nullspace.live/healthz"},
		{name: "http scheme rejected", in: "http://gateway.nullspace.live/ws", wantErr: true},
		{name: "no host", in: "wss:///ws", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HealthURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// probeServer is a health endpoint whose behavior can be flipped at runtime.
type probeServer struct {
	*httptest.Server
	healthy atomic.Bool
	hits    atomic.Int64
}

func newProbeServer(t *testing.T) *probeServer {
	t.Helper()
	ps := &probeServer{}
	ps.healthy.Store(true)
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.hits.Add(1)
		if ps.healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(ps.Close)
	return ps
}

func testMonitorConfig(probeURL string) Config {
	cfg := DefaultConfig()
	cfg.ProbeURL = probeURL
	cfg.ProbeTimeout = time.Second
	cfg.Debounce = 0
	return cfg
}

func TestMonitor_ThresholdWalk(t *testing.T) {
	ps := newProbeServer(t)
	ps.healthy.Store(false)

	cfg := testMonitorConfig(ps.URL)
	cfg.UnstableThreshold = 2
	cfg.OfflineThreshold = 4

	m := New(cfg, nil)
	ctx := context.Background()

	// Failures 1: still online.
	assert.Equal(t, StatusOnline, m.CheckNow(ctx))
	// Failure 2: unstable threshold reached.
	assert.Equal(t, StatusUnstable, m.CheckNow(ctx))
	// Failure 3: still unstable.
	assert.Equal(t, StatusUnstable, m.CheckNow(ctx))
	// Failure 4: offline threshold reached.
	assert.Equal(t, StatusOffline, m.CheckNow(ctx))
	assert.Equal(t, 4, m.Snapshot().FailureCount)
	assert.False(t, m.Status().IsOnline())
	assert.False(t, m.Status().IsStable())

	// A single success resets fully, regardless of prior status.
	ps.healthy.Store(true)
	assert.Equal(t, StatusOnline, m.CheckNow(ctx))
	snap := m.Snapshot()
	assert.Equal(t, 0, snap.FailureCount)
	assert.True(t, snap.Status.IsStable())
	assert.False(t, snap.LastOnlineAt.IsZero())
}

func TestMonitor_ProbeErrorCountsAsFailure(t *testing.T) {
	// Nothing listens here.
	cfg := testMonitorConfig("http://127.0.0.1:1/healthz")
	cfg.ProbeTimeout = 200 * time.Millisecond
	cfg.UnstableThreshold = 1
	cfg.OfflineThreshold = 2

	m := New(cfg, nil)
	ctx := context.Background()

	assert.Equal(t, StatusUnstable, m.CheckNow(ctx))
	assert.Equal(t, StatusOffline, m.CheckNow(ctx))
}

func TestMonitor_ResetFailures(t *testing.T) {
	ps := newProbeServer(t)
	ps.healthy.Store(false)

	cfg := testMonitorConfig(ps.URL)
	cfg.UnstableThreshold = 1
	cfg.OfflineThreshold = 2

	m := New(cfg, nil)
	ctx := context.Background()

	m.CheckNow(ctx)
	m.CheckNow(ctx)
	require.Equal(t, StatusOffline, m.Status())

	// Forces online without waiting for a probe.
	m.ResetFailures()
	snap := m.Snapshot()
	assert.Equal(t, StatusOnline, snap.Status)
	assert.Equal(t, 0, snap.FailureCount)
}

func TestMonitor_DebounceHoldsWorseningTransitions(t *testing.T) {
	ps := newProbeServer(t)
	ps.healthy.Store(false)

	cfg := testMonitorConfig(ps.URL)
	cfg.UnstableThreshold = 1
	cfg.OfflineThreshold = 2
	cfg.Debounce = time.Hour

	m := New(cfg, nil)
	ctx := context.Background()

	// First transition applies; the next worsening is inside the window.
	assert.Equal(t, StatusUnstable, m.CheckNow(ctx))
	assert.Equal(t, StatusUnstable, m.CheckNow(ctx))
	assert.Equal(t, StatusUnstable, m.CheckNow(ctx))

	// The counter kept advancing underneath.
	assert.GreaterOrEqual(t, m.Snapshot().FailureCount, 3)

	// Success bypasses the debounce; reset is authoritative.
	ps.healthy.Store(true)
	assert.Equal(t, StatusOnline, m.CheckNow(ctx))
}

func TestMonitor_UpdatesEmitTransitions(t *testing.T) {
	ps := newProbeServer(t)
	ps.healthy.Store(false)

	cfg := testMonitorConfig(ps.URL)
	cfg.UnstableThreshold = 1
	cfg.OfflineThreshold = 2

	m := New(cfg, nil)
	ctx := context.Background()

	m.CheckNow(ctx)
	m.CheckNow(ctx)

	var seen []Status
	for len(seen) < 2 {
		select {
		case s := <-m.Updates():
			seen = append(seen, s)
		case <-time.After(time.Second):
			t.Fatalf("missing updates, got %v", seen)
		}
	}
	assert.Equal(t, []Status{StatusUnstable, StatusOffline}, seen)
}

func TestMonitor_BackgroundSuspendsProbes(t *testing.T) {
	ps := newProbeServer(t)

	cfg := testMonitorConfig(ps.URL)
	cfg.Interval = 20 * time.Millisecond

	m := New(cfg, nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	// Let the loop probe a few times, then background.
	require.Eventually(t, func() bool { return ps.hits.Load() > 0 }, time.Second, 5*time.Millisecond)

	m.SetForeground(false)
	time.Sleep(60 * time.Millisecond) // let the loop consume the signal
	base := ps.hits.Load()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, base, ps.hits.Load(), "no probes while backgrounded")

	// Foreground edge fires an immediate probe.
	m.SetForeground(true)
	require.Eventually(t, func() bool { return ps.hits.Load() > base }, time.Second, 5*time.Millisecond)
}

func TestMonitor_StartStopLeavesNoProbesRunning(t *testing.T) {
	ps := newProbeServer(t)

	cfg := testMonitorConfig(ps.URL)
	cfg.Interval = 10 * time.Millisecond

	for i := 0; i < 5; i++ {
		m := New(cfg, nil)
		require.NoError(t, m.Start(context.Background()))
		time.Sleep(25 * time.Millisecond)
		m.Stop()
	}

	base := ps.hits.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, base, ps.hits.Load(), "stopped monitors must not probe")
}
