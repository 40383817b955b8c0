package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

type DNSStatus struct {
	Domain        string
	IPs           []net.IP
	Class         string // "NXDOMAIN" | "RESOLVES" | "SERVFAIL_or_TIMEOUT" | "INVALID_NAME"
	ResolverError string
}

func (s DNSStatus) Resolves() bool { return s.Class == "RESOLVES" }

var dnsTimeout = 3 * time.Second

// CheckDNS classifies whether the monitored host can be resolved. It runs at
// startup so a misconfigured host fails loudly instead of showing up as a
// port alarm every ten minutes.
func CheckDNS(ctx context.Context, domain string) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(domain)}
	if s.Domain == "" || strings.Contains(s.Domain, "://") || strings.ContainsAny(s.Domain, " /") {
		s.Class = "INVALID_NAME"
		return s
	}
	if ip := net.ParseIP(s.Domain); ip != nil {
		s.IPs = []net.IP{ip}
		s.Class = "RESOLVES"
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()
	r := &net.Resolver{} // OS resolver

	ips, err := r.LookupIP(ctx, "ip", s.Domain)
	if err == nil && len(ips) > 0 {
		s.IPs = ips
		s.Class = "RESOLVES"
		return s
	}
	if err != nil {
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) && de.IsNotFound {
			s.Class = "NXDOMAIN"
			return s
		}
	}
	s.Class = "SERVFAIL_or_TIMEOUT"
	return s
}
