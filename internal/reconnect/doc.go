// Package reconnect coordinates when the gateway transport should reconnect.
//
// The coordinator layers network health on top of raw transport state: a
// dead network is reported as offline no matter what the socket thinks,
// a user disconnect pins the status until an explicit reconnect, and the
// transport's retry schedule is surfaced as a per-second countdown. It is
// the single owner of the transport handle.
package reconnect
