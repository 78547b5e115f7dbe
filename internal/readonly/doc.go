// Package readonly decides when user actions must be held back because
// the link to the table cannot carry them. It derives a single gating
// reason from the unified connection status, carries the user-facing
// copy for each reason, and exposes short-lived transition flags so a
// UI can animate the entry and exit of read-only mode.
//
// The gate never blocks or retries anything itself. Recovery actions
// are forwarded verbatim to the reconnection coordinator.
package readonly
