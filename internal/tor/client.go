package tor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout is the timeout for checking if the Tor proxy is available.
// Short because this is only a connectivity check, not a request through Tor.
const checkProxyTimeout = 2 * time.Second

// defaultUserAgents is the pool a session's User-Agent is drawn from.
// Rotating the agent between sessions makes the crawler traffic look less
// uniform to the services being visited.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Windows NT 10.0; rv:115.0) Gecko/20100101 Firefox/115.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:128.0) Gecko/20100101 Firefox/128.0",
}

// defaultAcceptLanguages is the pool a session's Accept-Language is drawn from.
var defaultAcceptLanguages = []string{
	"en-US,en;q=0.5",
	"en-GB,en;q=0.5",
	"en-US,en;q=0.9",
}

// Client provides Tor network connectivity for the crawl engine.
// It wraps a SOCKS5 dialer and hands out independent HTTP sessions, and
// when a control-port Controller is attached it can rotate the Tor circuit
// identity between batches of pages.
//
// Design decision: the SOCKS5 side only needs a running Tor daemon with an
// open SOCKS port. Identity rotation additionally needs the control port;
// a Client without a Controller still crawls, it just never rotates.
type Client struct {
	// proxyAddress is the Tor SOCKS5 proxy address in "host:port" format.
	proxyAddress string

	// dialer is the SOCKS5 dialer for Tor connections, cached so it is
	// not recreated per session.
	dialer proxy.Dialer

	// timeout is the per-request timeout for HTTP sessions.
	timeout time.Duration

	// controller drives SIGNAL NEWNYM. Nil when no control port is
	// configured.
	controller *Controller

	userAgents      []string
	acceptLanguages []string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithController attaches a control-port controller used for identity
// rotation.
func WithController(ctrl *Controller) ClientOption {
	return func(c *Client) {
		c.controller = ctrl
	}
}

// WithUserAgents overrides the User-Agent pool sessions draw from.
func WithUserAgents(agents []string) ClientOption {
	return func(c *Client) {
		if len(agents) > 0 {
			c.userAgents = agents
		}
	}
}

// NewClient creates a new Tor client with the given proxy address and
// per-request timeout.
//
// The proxyAddress must be in "host:port" format (e.g., "127.0.0.1:9050").
// The constructor validates the address format but does not verify that the
// proxy is actually running; call CheckConnection for that.
func NewClient(proxyAddress string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port typically doesn't require auth.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	c := &Client{
		proxyAddress:    proxyAddress,
		dialer:          dialer,
		timeout:         timeout,
		userAgents:      defaultUserAgents,
		acceptLanguages: defaultAcceptLanguages,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
// A simple check rather than a full URL parser because the format is very
// specific (no scheme, no path, just host and port).
func isValidProxyAddress(address string) bool {
	parts := strings.Split(address, ":")
	if len(parts) != 2 {
		return false
	}

	host := parts[0]
	port := parts[1]

	if host == "" || port == "" {
		return false
	}

	portNum := 0
	for _, c := range port {
		if c < '0' || c > '9' {
			return false
		}
		portNum = portNum*10 + int(c-'0')
		if portNum > 65535 {
			return false
		}
	}
	return portNum >= 1
}

// NewSession returns an HTTP client that routes through the Tor proxy.
// Each session has its own cookie jar and its own randomly drawn
// User-Agent and Accept-Language, held constant for the session's
// lifetime.
//
// Design decisions:
//   - TLS verification is disabled because hidden services use self-signed
//     certs; the .onion address itself authenticates the service.
//   - Connection pool limits are smaller than Go's defaults because each
//     connection consumes a Tor circuit.
//   - Compression is disabled to avoid CRIME/BREACH-style side channels on
//     anonymity-sensitive traffic.
func (c *Client) NewSession() *http.Client {
	transport := &http.Transport{
		DialContext: func(_ context.Context, network, addr string) (net.Conn, error) {
			return c.dialer.Dial(network, addr)
		},
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Required for .onion services
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: &sessionTransport{
			base:           transport,
			userAgent:      c.userAgents[rand.Intn(len(c.userAgents))],
			acceptLanguage: c.acceptLanguages[rand.Intn(len(c.acceptLanguages))],
		},
		Timeout: c.timeout,
		Jar:     jar,
		// Limit redirects to prevent loops.
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// RenewIdentity asks the Tor daemon for a fresh circuit identity.
// Returns ErrRotationNotConfigured when no control port was attached.
func (c *Client) RenewIdentity(ctx context.Context) error {
	if c.controller == nil {
		return ErrRotationNotConfigured
	}
	return c.controller.RenewIdentity(ctx)
}

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5TestOnion is a synthetic .onion address used for SOCKS5
	// verification. Intentionally non-existent: the check only needs the
	// proxy to process a CONNECT request, not to reach anything.
	socks5TestOnion = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
)

// CheckConnection verifies that the Tor proxy is running and accessible.
// It returns a ProxyStatus indicating the result of the check.
//
// The check performs an actual SOCKS5 protocol handshake to verify:
//  1. The proxy speaks SOCKS5
//  2. The proxy accepts connections without authentication
//  3. The proxy can handle .onion domain connections
//
// Security note: this is more robust than checking an HTTP response string;
// a fake proxy cannot easily mimic proper SOCKS5 protocol behavior.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
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

	// Step 1: version negotiation. Offer no-auth only.
	_, err = conn.Write([]byte{socks5Version, 0x01, socks5AuthNone})
	if err != nil {
		return ProxyStatusCannotConnect
	}

	// Server responds: version (1 byte) + selected auth method (1 byte).
	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		// Anything else means it didn't speak SOCKS5 properly.
		return ProxyStatusWrongType
	}

	version := authResp[0]
	authMethod := authResp[1]

	if version != socks5Version {
		return ProxyStatusWrongType
	}
	if authMethod == socks5AuthNoAccept || authMethod != socks5AuthNone {
		// Tor's SOCKS port accepts no-auth by default.
		return ProxyStatusWrongType
	}

	// Step 2: send a CONNECT for a test .onion address. The proxy should
	// respond even though the address doesn't exist; that proves it is
	// actually proxying, not just completing handshakes.
	testOnion := socks5TestOnion
	testPort := uint16(80)

	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00, // reserved
		socks5AddrTypeDomID,
		byte(len(testOnion)),
	}
	connectReq = append(connectReq, []byte(testOnion)...)
	connectReq = append(connectReq, byte(testPort>>8), byte(testPort&0xFF))

	_, err = conn.Write(connectReq)
	if err != nil {
		return ProxyStatusCannotConnect
	}

	// Response header: version + reply + reserved + addr type.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}

	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}

	// Any reply code means the proxy processed the request. Tor returns
	// 0x04 (host unreachable) or 0x01 (general failure) for the synthetic
	// address, which is fine.
	return ProxyStatusOK
}

// DialContext establishes a TCP connection through Tor with context support.
//
// Design decision: the proxy.Dialer interface doesn't support context
// directly, so the dial runs in a goroutine. If the context is cancelled
// the underlying connection attempt may continue briefly; a known
// limitation of the approach.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// sessionTransport wraps an http.RoundTripper to stamp every request of a
// session with the same browser-like headers.
type sessionTransport struct {
	base           http.RoundTripper
	userAgent      string
	acceptLanguage string
}

// RoundTrip implements http.RoundTripper.
func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	if clone.Header.Get("Accept-Language") == "" {
		clone.Header.Set("Accept-Language", t.acceptLanguage)
	}
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}

	return t.base.RoundTrip(clone)
}
