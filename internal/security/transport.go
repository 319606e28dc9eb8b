// Package security keeps outbound webhook requests away from internal
// infrastructure. SafeTransport resolves every destination host and refuses
// to dial loopback, private, link-local and other reserved ranges, so a
// configured or relayed webhook URL cannot be used for SSRF.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// dnsTimeout is the maximum time allowed for DNS resolution.
const dnsTimeout = 500 * time.Millisecond

var (
	// ErrSSRFBlocked is returned when a request targets a blocked IP range.
	ErrSSRFBlocked = errors.New("ssrf: request to blocked IP range")
	// ErrSSRFDNSTimeout is returned when DNS resolution exceeds the timeout.
	ErrSSRFDNSTimeout = errors.New("ssrf: DNS resolution timeout")
	// ErrSSRFTooManyRedirects is returned when the redirect limit is exceeded.
	ErrSSRFTooManyRedirects = errors.New("ssrf: too many redirects")
	// ErrSSRFDNSFailed is returned when DNS resolution fails entirely.
	ErrSSRFDNSFailed = errors.New("ssrf: DNS resolution failed")
)

// BlockedCIDRs lists the ranges no webhook request may reach.
var BlockedCIDRs = []string{
	"127.0.0.0/8",    // Localhost
	"10.0.0.0/8",     // Private Class A
	"172.16.0.0/12",  // Private Class B
	"192.168.0.0/16", // Private Class C
	"169.254.0.0/16", // Link-local (cloud metadata)
	"0.0.0.0/8",      // Current network
	"224.0.0.0/4",    // Multicast
	"240.0.0.0/4",    // Reserved
	"100.64.0.0/10",  // Shared Address Space (CGN)
	"198.18.0.0/15",  // Benchmark testing
	"fc00::/7",       // IPv6 private
	"fe80::/10",      // IPv6 link-local
	"::1/128",        // IPv6 localhost
}

var (
	blockedNets []*net.IPNet
	initOnce    sync.Once
	initErr     error
)

func initBlockedNets() error {
	initOnce.Do(func() {
		blockedNets = make([]*net.IPNet, 0, len(BlockedCIDRs))
		for _, cidr := range BlockedCIDRs {
			_, ipNet, err := net.ParseCIDR(cidr)
			if err != nil {
				initErr = fmt.Errorf("ssrf: failed to parse CIDR %q: %w", cidr, err)
				return
			}
			blockedNets = append(blockedNets, ipNet)
		}
	})
	return initErr
}

func isBlockedIP(ip net.IP) bool {
	for _, ipNet := range blockedNets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// IsSSRFError reports whether err was produced by the SSRF guards.
func IsSSRFError(err error) bool {
	return errors.Is(err, ErrSSRFBlocked) ||
		errors.Is(err, ErrSSRFDNSTimeout) ||
		errors.Is(err, ErrSSRFTooManyRedirects) ||
		errors.Is(err, ErrSSRFDNSFailed)
}

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// resolveSafe returns the addresses of host after checking every one of them
// against the blocklist. IP literals are checked without a lookup. All
// addresses must pass, which defeats DNS rebinding with mixed answers.
func resolveSafe(ctx context.Context, resolver Resolver, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrSSRFBlocked, ip)
		}
		return []net.IP{ip}, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrSSRFDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrSSRFDNSFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrSSRFDNSFailed, host)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if isBlockedIP(addr.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrSSRFBlocked, addr.IP, host)
		}
		ips = append(ips, addr.IP)
	}
	return ips, nil
}

// SafeTransport wraps http.Transport and validates every resolved address
// while the connection is established.
type SafeTransport struct {
	// Base is the underlying http.Transport used for actual connections.
	Base *http.Transport

	// Resolver is used for DNS lookups. If nil, net.DefaultResolver is used.
	Resolver Resolver
}

// NewSafeTransport creates a SafeTransport wrapping base, or a default
// http.Transport when base is nil. base.DialContext is replaced.
func NewSafeTransport(base *http.Transport) (*SafeTransport, error) {
	if err := initBlockedNets(); err != nil {
		return nil, fmt.Errorf("ssrf: initialization failed: %w", err)
	}
	if base == nil {
		base = &http.Transport{}
	}

	st := &SafeTransport{Base: base}
	base.DialContext = st.safeDialContext
	return st, nil
}

// RoundTrip implements http.RoundTripper.
func (st *SafeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return st.Base.RoundTrip(req)
}

func (st *SafeTransport) safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ssrf: invalid address %q: %w", addr, err)
	}

	ips, err := resolveSafe(ctx, resolverOrDefault(st.Resolver), host)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

// CheckRedirect returns an http.Client CheckRedirect function that applies
// the blocklist to redirect targets and caps the number of redirects.
// resolver is optional; if nil, net.DefaultResolver is used.
func CheckRedirect(maxRedirects int, resolver Resolver) func(req *http.Request, via []*http.Request) error {
	_ = initBlockedNets()
	resolver = resolverOrDefault(resolver)

	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrSSRFTooManyRedirects, maxRedirects)
		}

		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrSSRFBlocked)
		}

		if _, err := resolveSafe(req.Context(), resolver, host); err != nil {
			return fmt.Errorf("redirect: %w", err)
		}
		return nil
	}
}

// NewSafeHTTPClient creates an http.Client configured with SafeTransport
// and SSRF-aware redirect checking.
func NewSafeHTTPClient(timeout time.Duration, maxRedirects int) (*http.Client, error) {
	transport, err := NewSafeTransport(nil)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       timeout,
		CheckRedirect: CheckRedirect(maxRedirects, transport.Resolver),
	}, nil
}

type netResolver struct {
	r *net.Resolver
}

func (nr *netResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return nr.r.LookupIPAddr(ctx, host)
}

func resolverOrDefault(r Resolver) Resolver {
	if r != nil {
		return r
	}
	return &netResolver{r: net.DefaultResolver}
}
