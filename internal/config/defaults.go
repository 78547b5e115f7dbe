package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHandshakeTimeout     = 60 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultPingInterval         = 15 * time.Second
	DefaultStaleTimeout         = 30 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultMessageBufferSize    = 256

	DefaultHealthInterval     = 10 * time.Second
	DefaultProbeTimeout       = 5 * time.Second
	DefaultUnstableThreshold  = 2
	DefaultOfflineThreshold   = 4
	DefaultHealthDebounce     = 1 * time.Second

	DefaultStabilizationDelay = 500 * time.Millisecond
	DefaultCountdownTick      = 1 * time.Second

	DefaultTransitionWindow = 500 * time.Millisecond
)

func (c *ClientConfig) applyDefaults() {
	// Gateway defaults
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if c.Gateway.PingInterval == 0 {
		c.Gateway.PingInterval = DefaultPingInterval
	}
	if c.Gateway.StaleTimeout == 0 {
		c.Gateway.StaleTimeout = DefaultStaleTimeout
	}
	if c.Gateway.ReconnectBaseDelay == 0 {
		c.Gateway.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Gateway.ReconnectMaxDelay == 0 {
		c.Gateway.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Gateway.MaxReconnectAttempts == 0 {
		c.Gateway.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Gateway.MessageBufferSize == 0 {
		c.Gateway.MessageBufferSize = DefaultMessageBufferSize
	}

	// Health defaults
	if c.Health.Interval == 0 {
		c.Health.Interval = DefaultHealthInterval
	}
	if c.Health.ProbeTimeout == 0 {
		c.Health.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Health.UnstableThreshold == 0 {
		c.Health.UnstableThreshold = DefaultUnstableThreshold
	}
	if c.Health.OfflineThreshold == 0 {
		c.Health.OfflineThreshold = DefaultOfflineThreshold
	}
	if c.Health.Debounce == 0 {
		c.Health.Debounce = DefaultHealthDebounce
	}

	// Reconnect defaults
	if c.Reconnect.StabilizationDelay == 0 {
		c.Reconnect.StabilizationDelay = DefaultStabilizationDelay
	}
	if c.Reconnect.CountdownTick == 0 {
		c.Reconnect.CountdownTick = DefaultCountdownTick
	}

	// Read-only defaults
	if c.ReadOnly.TransitionWindow == 0 {
		c.ReadOnly.TransitionWindow = DefaultTransitionWindow
	}
}
