package probe

import "context"

// CheckResult holds the outcome of a single probe
type CheckResult struct {
	Name      string  `json:"name"`
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	// Misconfigured is set when the target itself is invalid (bad address,
	// unresolvable host) rather than unreachable.
	Misconfigured bool `json:"misconfigured,omitempty"`
}

// Checker is implemented by any liveness check. target is "host:port".
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
