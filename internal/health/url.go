package health

import (
	"fmt"
	"net/url"
	"strings"
)

// healthPath is the fixed reachability endpoint on the gateway host.
const healthPath = "/healthz"

// HealthURL derives the HTTP reachability probe URL from a gateway
// WebSocket URL: ws becomes http, wss becomes https, host and port are
// kept, and the path is fixed to /healthz.
func HealthURL(gatewayURL string) (string, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("gateway url scheme must be ws or wss, got %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("gateway url has no host: %q", gatewayURL)
	}

	u.Path = healthPath
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}
