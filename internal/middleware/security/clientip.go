package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

var defaultTrusted = []string{
	"127.0.0.0/8",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
}

// ClientIP resolves the caller's address. Forwarding headers are honored
// only when the direct peer is a trusted proxy.
type ClientIP struct {
	trusted  []*net.IPNet
	spoofed  int64
	rejected int64
}

// NewClientIP trusts the loopback and private ranges plus any extra CIDRs.
func NewClientIP(extra ...string) (*ClientIP, error) {
	c := &ClientIP{}
	for _, cidr := range append(append([]string(nil), defaultTrusted...), extra...) {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", cidr, err)
		}
		c.trusted = append(c.trusted, network)
	}
	return c, nil
}

func (c *ClientIP) isTrusted(ip net.IP) bool {
	for _, network := range c.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Extract returns the client address for r.
func (c *ClientIP) Extract(r *http.Request) string {
	direct, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		direct = r.RemoteAddr
	}
	parsed := net.ParseIP(direct)
	if parsed == nil {
		return direct
	}

	if !c.isTrusted(parsed) {
		if r.Header.Get("X-Forwarded-For") != "" || r.Header.Get("X-Real-IP") != "" {
			atomic.AddInt64(&c.spoofed, 1)
		}
		return direct
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return direct
}

// MethodGuard rejects diagnostic methods the API never serves.
func (c *ClientIP) MethodGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodTrace, http.MethodConnect, "TRACK", "DEBUG":
			atomic.AddInt64(&c.rejected, 1)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Metrics counts untrusted forwarding headers and rejected methods.
type Metrics struct {
	SpoofedHeaders  int64
	RejectedMethods int64
}

func (c *ClientIP) GetMetrics() Metrics {
	return Metrics{
		SpoofedHeaders:  atomic.LoadInt64(&c.spoofed),
		RejectedMethods: atomic.LoadInt64(&c.rejected),
	}
}
