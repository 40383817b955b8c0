package probe

import (
	"context"
	"errors"
	"net"
	"time"
)

type TCPChecker struct {
	Dialer  *net.Dialer
	Timeout time.Duration
}

func NewTCPChecker(timeout time.Duration) *TCPChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TCPChecker{
		Dialer:  &net.Dialer{},
		Timeout: timeout,
	}
}

// Check opens and immediately closes a TCP connection to target. Refused and
// timed-out connections are reported as failures, never as errors.
func (c *TCPChecker) Check(ctx context.Context, target string) CheckResult {
	if _, _, err := net.SplitHostPort(target); err != nil {
		return CheckResult{Name: "TCP", Message: err.Error(), Misconfigured: true}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.Dialer.DialContext(ctx, "tcp", target)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		var de *net.DNSError
		return CheckResult{
			Name:          "TCP",
			Message:       err.Error(),
			LatencyMS:     latency,
			Misconfigured: errors.As(err, &de) && de.IsNotFound,
		}
	}
	_ = conn.Close()
	return CheckResult{Name: "TCP", Success: true, Message: "connected", LatencyMS: latency}
}
