package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockResolver implements Resolver for deterministic testing.
type mockResolver struct {
	ips map[string][]net.IPAddr
	err error
}

func (m *mockResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	if m.err != nil {
		return nil, m.err
	}
	ips, ok := m.ips[host]
	if !ok {
		return nil, fmt.Errorf("no such host: %s", host)
	}
	return ips, nil
}

// slowResolver simulates a DNS resolver that takes too long.
type slowResolver struct {
	delay time.Duration
}

func (s *slowResolver) LookupIPAddr(ctx context.Context, _ string) ([]net.IPAddr, error) {
	select {
	case <-time.After(s.delay):
		return []net.IPAddr{{IP: net.ParseIP("93.184.216.34")}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newMockResolver(mappings map[string][]string) *mockResolver {
	ips := make(map[string][]net.IPAddr)
	for host, ipStrs := range mappings {
		addrs := make([]net.IPAddr, len(ipStrs))
		for i, ipStr := range ipStrs {
			addrs[i] = net.IPAddr{IP: net.ParseIP(ipStr)}
		}
		ips[host] = addrs
	}
	return &mockResolver{ips: ips}
}

func TestInitBlockedNets(t *testing.T) {
	require.NoError(t, initBlockedNets())
	assert.Len(t, blockedNets, len(BlockedCIDRs))
}

func TestIsBlockedIP(t *testing.T) {
	require.NoError(t, initBlockedNets())

	tests := []struct {
		ip      string
		blocked bool
	}{
		{"127.0.0.1", true},
		{"127.255.255.254", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.10", true},
		{"169.254.169.254", true},
		{"0.0.0.0", true},
		{"100.64.0.1", true},
		{"198.18.0.1", true},
		{"224.0.0.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"fd00::1", true},
		{"172.32.0.1", false},
		{"8.8.8.8", false},
		{"93.184.216.34", false},
		{"2606:4700:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.blocked, isBlockedIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestResolveSafe(t *testing.T) {
	require.NoError(t, initBlockedNets())
	resolver := newMockResolver(map[string][]string{
		"chat.example.com":     {"93.184.216.34"},
		"internal.example.com": {"10.0.0.5"},
		"rebind.example.com":   {"93.184.216.34", "127.0.0.1"},
		"empty.example.com":    {},
	})
	ctx := context.Background()

	ips, err := resolveSafe(ctx, resolver, "chat.example.com")
	require.NoError(t, err)
	assert.Equal(t, "93.184.216.34", ips[0].String())

	ips, err = resolveSafe(ctx, resolver, "8.8.8.8")
	require.NoError(t, err, "public IP literals skip DNS")
	assert.Equal(t, "8.8.8.8", ips[0].String())

	_, err = resolveSafe(ctx, resolver, "169.254.169.254")
	assert.ErrorIs(t, err, ErrSSRFBlocked)

	_, err = resolveSafe(ctx, resolver, "internal.example.com")
	assert.ErrorIs(t, err, ErrSSRFBlocked)

	_, err = resolveSafe(ctx, resolver, "rebind.example.com")
	assert.ErrorIs(t, err, ErrSSRFBlocked, "a single blocked answer fails the host")

	_, err = resolveSafe(ctx, resolver, "empty.example.com")
	assert.ErrorIs(t, err, ErrSSRFDNSFailed)

	_, err = resolveSafe(ctx, resolver, "unknown.example.com")
	assert.ErrorIs(t, err, ErrSSRFDNSFailed)
}

func TestResolveSafe_DNSTimeout(t *testing.T) {
	require.NoError(t, initBlockedNets())

	_, err := resolveSafe(context.Background(), &slowResolver{delay: 2 * time.Second}, "slow.example.com")
	assert.ErrorIs(t, err, ErrSSRFDNSTimeout)
}

func TestSafeTransport_BlocksPrivateDestinations(t *testing.T) {
	transport, err := NewSafeTransport(nil)
	require.NoError(t, err)
	transport.Resolver = newMockResolver(map[string][]string{
		"mattermost.internal": {"192.168.10.4"},
	})
	client := &http.Client{Transport: transport, Timeout: 2 * time.Second}

	for _, target := range []string{
		"http://127.0.0.1:8065/hooks/abc",
		"http://[::1]:8065/hooks/abc",
		"http://mattermost.internal/hooks/abc",
	} {
		t.Run(target, func(t *testing.T) {
			resp, err := client.Post(target, "application/json", nil)
			if resp != nil {
				resp.Body.Close()
			}
			require.Error(t, err)
			assert.True(t, IsSSRFError(err), "got %v", err)
		})
	}
}

func TestSafeTransport_DNSFailure(t *testing.T) {
	transport, err := NewSafeTransport(nil)
	require.NoError(t, err)
	transport.Resolver = &mockResolver{err: errors.New("SERVFAIL")}
	client := &http.Client{Transport: transport, Timeout: 2 * time.Second}

	resp, err := client.Get("http://chat.example.com/hooks/abc")
	if resp != nil {
		resp.Body.Close()
	}
	assert.ErrorIs(t, err, ErrSSRFDNSFailed)
}

func TestCheckRedirect(t *testing.T) {
	resolver := newMockResolver(map[string][]string{
		"chat.example.com":    {"93.184.216.34"},
		"hooks.example.com":   {"93.184.216.35"},
		"private.example.com": {"172.20.0.9"},
	})
	check := CheckRedirect(3, resolver)

	request := func(raw string) *http.Request {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return (&http.Request{URL: u}).WithContext(context.Background())
	}
	hops := func(n int) []*http.Request {
		via := make([]*http.Request, n)
		for i := range via {
			via[i] = request("https://chat.example.com/hooks/abc")
		}
		return via
	}

	assert.NoError(t, check(request("https://hooks.example.com/hooks/abc"), hops(1)))
	assert.NoError(t, check(request("https://hooks.example.com/hooks/abc"), hops(2)))
	assert.ErrorIs(t, check(request("https://hooks.example.com/hooks/abc"), hops(3)), ErrSSRFTooManyRedirects)
	assert.ErrorIs(t, check(request("http://private.example.com/"), hops(1)), ErrSSRFBlocked)
	assert.ErrorIs(t, check(request("http://169.254.169.254/latest/meta-data"), hops(1)), ErrSSRFBlocked)
	assert.ErrorIs(t, check(request("http://localhost.invalid/"), hops(1)), ErrSSRFDNSFailed)
	assert.ErrorIs(t, check(request("file:///etc/passwd"), hops(1)), ErrSSRFBlocked)
}

func TestNewSafeHTTPClient(t *testing.T) {
	client, err := NewSafeHTTPClient(5*time.Second, 3)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, client.Timeout)
	assert.NotNil(t, client.CheckRedirect)
	_, ok := client.Transport.(*SafeTransport)
	assert.True(t, ok, "transport should be *SafeTransport")
}

func TestIsSSRFError(t *testing.T) {
	assert.True(t, IsSSRFError(fmt.Errorf("dial: %w", ErrSSRFBlocked)))
	assert.True(t, IsSSRFError(ErrSSRFDNSTimeout))
	assert.False(t, IsSSRFError(errors.New("connection refused")))
	assert.False(t, IsSSRFError(nil))
}
