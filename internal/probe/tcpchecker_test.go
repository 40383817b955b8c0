package probe

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	return ln, ln.Addr().(*net.TCPAddr).Port
}

// closedPort returns a port that nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestTCPChecker_Connected(t *testing.T) {
	ln, port := listen(t)
	defer ln.Close()

	chk := NewTCPChecker(time.Second)
	out := chk.Check(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
}

func TestTCPChecker_RefusedIsFailureNotMisconfig(t *testing.T) {
	chk := NewTCPChecker(time.Second)
	out := chk.Check(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(closedPort(t))))
	if out.Success {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.Misconfigured {
		t.Fatalf("refused connection must not be a misconfiguration")
	}
	if out.Message == "" {
		t.Fatalf("want non-empty error message")
	}
}

func TestTCPChecker_BadTarget(t *testing.T) {
	chk := NewTCPChecker(time.Second)
	out := chk.Check(context.Background(), "no-port-here")
	if out.Success || !out.Misconfigured {
		t.Fatalf("want misconfigured failure, got %+v", out)
	}
}

type fakeChecker struct {
	up map[string]bool
}

func (f *fakeChecker) Check(ctx context.Context, target string) CheckResult {
	if f.up[target] {
		return CheckResult{Name: "TCP", Success: true, Message: "connected"}
	}
	return CheckResult{Name: "TCP", Message: "connection refused"}
}

func TestPortScanner_KeepsOrderAndReportsFailures(t *testing.T) {
	chk := &fakeChecker{up: map[string]bool{
		"10.0.0.1:9092":  true,
		"10.0.0.1:9100":  false,
		"10.0.0.1:10086": false,
	}}
	sc := NewPortScanner(chk)
	st, err := sc.Scan(context.Background(), "10.0.0.1", []int{9092, 9100, 10086})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(st) != 3 || st[0].Port != 9092 || st[2].Port != 10086 {
		t.Fatalf("unexpected statuses: %+v", st)
	}
	failed := Failed(st)
	if len(failed) != 2 || failed[0] != 9100 || failed[1] != 10086 {
		t.Fatalf("unexpected failed ports: %v", failed)
	}
}

func TestCheckDNS_Literals(t *testing.T) {
	if s := CheckDNS(context.Background(), "127.0.0.1"); !s.Resolves() {
		t.Fatalf("IP literal should resolve, got %+v", s)
	}
	if s := CheckDNS(context.Background(), "http://x"); s.Class != "INVALID_NAME" {
		t.Fatalf("want INVALID_NAME, got %s", s.Class)
	}
	if s := CheckDNS(context.Background(), ""); s.Class != "INVALID_NAME" {
		t.Fatalf("want INVALID_NAME, got %s", s.Class)
	}
}
