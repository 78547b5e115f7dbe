// Package health monitors network reachability independent of the WebSocket.
//
// A periodic HTTP probe against the gateway's /healthz endpoint drives a
// consecutive-failure counter; the counter maps to online / unstable /
// offline through configurable thresholds. A single successful probe resets
// the counter fully. Distinguishing "network down" from "server down" is
// exactly what lets the reconnection coordinator report offline instead of
// burning reconnect attempts into a dead network.
package health
