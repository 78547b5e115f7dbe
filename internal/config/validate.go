package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Client.PlayerID == "" {
		return errors.New("client.player_id is required")
	}

	if c.Gateway.URL == "" {
		return errors.New("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "ws" && scheme != "wss" {
		return fmt.Errorf("gateway.url scheme must be ws or wss, got %q", u.Scheme)
	}

	if c.Gateway.MaxReconnectAttempts < 1 {
		return errors.New("gateway.max_reconnect_attempts must be >= 1")
	}
	if c.Gateway.ReconnectBaseDelay <= 0 {
		return errors.New("gateway.reconnect_base_delay must be positive")
	}
	if c.Gateway.ReconnectMaxDelay < c.Gateway.ReconnectBaseDelay {
		return fmt.Errorf("gateway.reconnect_max_delay (%s) cannot be below reconnect_base_delay (%s)",
			c.Gateway.ReconnectMaxDelay, c.Gateway.ReconnectBaseDelay)
	}
	if c.Gateway.MessageBufferSize < 1 {
		return errors.New("gateway.message_buffer_size must be >= 1")
	}

	if c.Health.UnstableThreshold < 1 {
		return errors.New("health.unstable_threshold must be >= 1")
	}
	if c.Health.OfflineThreshold <= c.Health.UnstableThreshold {
		return fmt.Errorf("health.offline_threshold (%d) must exceed unstable_threshold (%d)",
			c.Health.OfflineThreshold, c.Health.UnstableThreshold)
	}
	if c.Health.ProbeTimeout <= 0 {
		return errors.New("health.probe_timeout must be positive")
	}
	if c.Health.Interval <= 0 {
		return errors.New("health.interval must be positive")
	}

	if c.Reconnect.StabilizationDelay < 0 {
		return errors.New("reconnect.stabilization_delay cannot be negative")
	}
	if c.Reconnect.CountdownTick <= 0 {
		return errors.New("reconnect.countdown_tick must be positive")
	}

	if c.ReadOnly.TransitionWindow <= 0 {
		return errors.New("read_only.transition_window must be positive")
	}

	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 0 and 65535, got %d", c.Status.Port)
	}

	return nil
}
