package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/hamed0406/ingestwatch/internal/domain"
)

// ErrMisconfigured is returned by Scan when a target cannot be probed at all.
var ErrMisconfigured = errors.New("probe target misconfigured")

// PortScanner probes a set of ports on one host, each independently.
type PortScanner struct {
	Checker Checker
}

func NewPortScanner(checker Checker) *PortScanner {
	return &PortScanner{Checker: checker}
}

// Scan probes every port concurrently and returns statuses in input order.
// Unreachable ports are not errors; an error is only returned when a target
// is misconfigured, together with the statuses gathered.
func (s *PortScanner) Scan(ctx context.Context, host string, ports []int) ([]domain.PortStatus, error) {
	out := make([]domain.PortStatus, len(ports))
	misconf := make([]bool, len(ports))

	var wg sync.WaitGroup
	for i, port := range ports {
		wg.Add(1)
		go func(i, port int) {
			defer wg.Done()
			res := s.Checker.Check(ctx, net.JoinHostPort(host, strconv.Itoa(port)))
			out[i] = domain.PortStatus{
				Host:      host,
				Port:      port,
				Up:        res.Success,
				LatencyMS: res.LatencyMS,
				Reason:    res.Message,
			}
			misconf[i] = res.Misconfigured
		}(i, port)
	}
	wg.Wait()

	for i, bad := range misconf {
		if bad {
			return out, fmt.Errorf("%w: %s:%d: %s", ErrMisconfigured, host, ports[i], out[i].Reason)
		}
	}
	return out, nil
}

// Failed returns the ports that did not connect.
func Failed(statuses []domain.PortStatus) []int {
	var ports []int
	for _, st := range statuses {
		if !st.Up {
			ports = append(ports, st.Port)
		}
	}
	return ports
}
