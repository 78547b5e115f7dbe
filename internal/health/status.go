package health

// Status classifies network reachability from consecutive probe failures.
type Status int

const (
	// StatusOnline indicates probes are succeeding.
	StatusOnline Status = iota
	// StatusUnstable indicates failures reached the unstable threshold.
	StatusUnstable
	// StatusOffline indicates failures reached the offline threshold.
	StatusOffline
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusUnstable:
		return "unstable"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// IsOnline reports whether the network is usable at all.
func (s Status) IsOnline() bool {
	return s != StatusOffline
}

// IsStable reports whether the network is fully healthy.
func (s Status) IsStable() bool {
	return s == StatusOnline
}
