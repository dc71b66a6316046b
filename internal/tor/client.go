package tor

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 probe. The probe is a local
// connectivity check, not a request through Tor, so it should answer
// quickly.
const checkProxyTimeout = 2 * time.Second

// maxRedirects caps redirect chains on crawled pages.
const maxRedirects = 10

// Client wraps one SOCKS5 endpoint. It creates HTTP clients whose
// traffic is routed through that endpoint and can probe the endpoint for
// liveness. Construction never touches the network; probe with
// CheckConnection before relying on it.
type Client struct {
	// address is the SOCKS5 endpoint in "host:port" form.
	address string

	// dialer is the cached SOCKS5 dialer for this endpoint.
	dialer proxy.Dialer

	// timeout is the per-request timeout applied to HTTP clients.
	timeout time.Duration
}

// NewClient creates a client for the SOCKS5 endpoint at address. The
// address format is validated; endpoint liveness is not.
func NewClient(address string, timeout time.Duration) (*Client, error) {
	if !validProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}
	// Tor's SOCKS port does not use authentication.
	dialer, err := proxy.SOCKS5("tcp", address, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}
	return &Client{address: address, dialer: dialer, timeout: timeout}, nil
}

// validProxyAddress reports whether address is "host:port" with a port
// in range. A full URL parser is deliberately not used: there is no
// scheme or path to accept.
func validProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// Address returns the SOCKS5 endpoint address.
func (c *Client) Address() string {
	return c.address
}

// HTTPClient creates an HTTP client routed through this endpoint.
//
// Design decisions:
//   - TLS verification is disabled: hidden services use self-signed
//     certificates, and the onion address itself authenticates the peer.
//   - Compression is disabled to avoid compression side channels over
//     anonymized circuits.
//   - A cookie jar is enabled so sites that gate content behind a session
//     cookie still render on the second request within a crawl.
//   - Pool limits are below stdlib defaults because every idle connection
//     pins a Tor circuit.
func (c *Client) HTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: func(_ context.Context, network, addr string) (net.Conn, error) {
			return c.dialer.Dial(network, addr)
		},
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // hidden services use self-signed certs
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails on invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// SOCKS5 protocol constants used by the probe.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
	socks5CmdConnect   = 0x01
	socks5AddrDomain   = 0x03

	// socks5ProbeOnion is a synthetic, non-existent onion address. The
	// probe only needs the proxy to process a CONNECT for an onion
	// domain; the connect itself is expected to fail.
	socks5ProbeOnion = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
)

// CheckConnection probes the endpoint with a real SOCKS5 handshake:
// version negotiation, no-auth selection, and a CONNECT for an onion
// domain. Any well-formed CONNECT reply (including failure replies)
// proves the endpoint is a functioning SOCKS5 proxy; checking protocol
// behavior is harder to spoof than matching response strings.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.address)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Version negotiation: offer no-auth only.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}
	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if authResp[0] != socks5Version || authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	// CONNECT to the probe onion. The reply code does not matter; a
	// well-formed reply does.
	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrDomain, byte(len(socks5ProbeOnion))}
	req = append(req, socks5ProbeOnion...)
	req = append(req, 0x00, 0x50) // port 80
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}
	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if reply[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// ProxyPool rotates fetches across several SOCKS5 endpoints. Running one
// Tor instance per endpoint gives each fetch an independent circuit
// budget, so the pool is how the crawler spreads load.
//
// The pool is immutable after construction and safe for concurrent use.
type ProxyPool struct {
	clients []*Client
}

// NewProxyPool builds a pool from "host:port" addresses. All addresses
// must be valid; at least one is required.
func NewProxyPool(addresses []string, timeout time.Duration) (*ProxyPool, error) {
	if len(addresses) == 0 {
		return nil, ErrEmptyProxyPool
	}
	clients := make([]*Client, 0, len(addresses))
	for _, addr := range addresses {
		c, err := NewClient(strings.TrimSpace(addr), timeout)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return &ProxyPool{clients: clients}, nil
}

// Size returns the number of endpoints in the pool.
func (p *ProxyPool) Size() int {
	return len(p.clients)
}

// Pick returns a uniformly random endpoint client.
func (p *ProxyPool) Pick() *Client {
	return p.clients[rand.IntN(len(p.clients))]
}

// RandomHTTPClient returns an HTTP client routed through a random
// endpoint, plus that endpoint's address for logging.
func (p *ProxyPool) RandomHTTPClient() (*http.Client, string) {
	c := p.Pick()
	return c.HTTPClient(), c.address
}

// CheckAll probes every endpoint and returns the per-address status.
// Startup uses this to fail fast on dead or misconfigured proxies.
func (p *ProxyPool) CheckAll(ctx context.Context) map[string]ProxyStatus {
	out := make(map[string]ProxyStatus, len(p.clients))
	for _, c := range p.clients {
		out[c.address] = c.CheckConnection(ctx)
	}
	return out
}
