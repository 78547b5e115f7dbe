// Package transport implements the WebSocket channel to the live-table gateway.
//
// The transport owns the socket lifecycle: it dials with a long handshake
// timeout, keeps the link alive with ping/pong heartbeats, and schedules its
// own exponential-backoff retries after a drop. Once the retry budget is
// exhausted it parks in StateFailed and only a manual Reconnect restarts it.
// Consumers observe the lifecycle through StateChanges and read parsed
// gateway messages (session_ready, balance, game_started, game_result, ...)
// from Messages.
package transport
