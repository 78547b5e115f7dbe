// Package session maintains the client-side view of a live-table seat:
// session identity, balance, and round lifecycle folded from the gateway
// message stream. Bet submission goes through the read-only gate so a
// degraded connection refuses the action up front instead of letting it
// fail on the wire.
package session
