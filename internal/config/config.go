package config

import "time"

// ClientConfig is the root configuration for a tablelink client instance.
type ClientConfig struct {
	Client    ClientInfoConfig `yaml:"client"`
	Gateway   GatewayConfig    `yaml:"gateway"`
	Health    HealthConfig     `yaml:"health"`
	Reconnect ReconnectConfig  `yaml:"reconnect"`
	ReadOnly  ReadOnlyConfig   `yaml:"read_only"`
	Status    StatusConfig     `yaml:"status"`
}

// ClientInfoConfig identifies this client.
type ClientInfoConfig struct {
	PlayerID string `yaml:"player_id"`
}

// GatewayConfig holds gateway WebSocket transport settings.
type GatewayConfig struct {
	// URL is the gateway WebSocket endpoint (ws:// or wss://).
	// Supplied via ${GATEWAY_URL} for local/staging/production targeting.
	URL string `yaml:"url"`

	// HandshakeTimeout bounds a single connect attempt. Backend session
	// registration is slow, so this is much longer than the health probe
	// timeout; the two must not be conflated.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	StaleTimeout time.Duration `yaml:"stale_timeout"`

	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`

	MessageBufferSize int `yaml:"message_buffer_size"`
}

// HealthConfig holds network health monitor settings.
type HealthConfig struct {
	Interval     time.Duration `yaml:"interval"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// UnstableThreshold and OfflineThreshold are consecutive-failure counts.
	// UnstableThreshold must be strictly below OfflineThreshold.
	UnstableThreshold int `yaml:"unstable_threshold"`
	OfflineThreshold  int `yaml:"offline_threshold"`

	// Debounce limits how often a status transition may be applied.
	Debounce time.Duration `yaml:"debounce"`
}

// ReconnectConfig holds reconnection coordinator settings.
type ReconnectConfig struct {
	// StabilizationDelay is the wait after network recovery before
	// commanding a reconnect, to let the network stack settle.
	StabilizationDelay time.Duration `yaml:"stabilization_delay"`

	// CountdownTick is the refresh cadence of the next-attempt countdown.
	CountdownTick time.Duration `yaml:"countdown_tick"`
}

// ReadOnlyConfig holds read-only mode gate settings.
type ReadOnlyConfig struct {
	// TransitionWindow is how long the just-entered/just-exited flags stay
	// set after a read-only edge.
	TransitionWindow time.Duration `yaml:"transition_window"`
}

// StatusConfig holds the local status endpoint settings.
type StatusConfig struct {
	// Port for the local /status JSON endpoint. 0 disables it.
	Port int `yaml:"port"`
}
