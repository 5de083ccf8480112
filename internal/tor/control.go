package tor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// controlTimeout bounds a single control-port conversation. Commands are
// tiny request/response exchanges, so a short deadline is enough.
const controlTimeout = 10 * time.Second

// defaultStabilizeWait gives Tor time to build fresh circuits after a
// NEWNYM before the crawler resumes fetching.
const defaultStabilizeWait = 5 * time.Second

// Controller speaks the Tor control protocol over a dedicated connection
// per command. It implements only what the crawler needs: authenticate and
// SIGNAL NEWNYM.
//
// Design decision: each RenewIdentity opens its own connection instead of
// keeping one alive. Rotation happens at most once per renewal interval,
// so there is nothing to amortize, and a fresh connection avoids having to
// detect and recover a dead long-lived one.
type Controller struct {
	// address is the control port in "host:port" format
	// (e.g., "127.0.0.1:9051").
	address string

	// password authenticates against HashedControlPassword. Empty means
	// the daemon runs with an open control port (no auth).
	password string

	// stabilizeWait is the pause after a NEWNYM is acknowledged.
	stabilizeWait time.Duration
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControlPassword sets the control-port password.
func WithControlPassword(password string) ControllerOption {
	return func(c *Controller) {
		c.password = password
	}
}

// WithStabilizeWait overrides the pause after a successful NEWNYM.
func WithStabilizeWait(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.stabilizeWait = d
		}
	}
}

// NewController creates a Controller for the given control-port address.
func NewController(address string, opts ...ControllerOption) (*Controller, error) {
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}

	c := &Controller{
		address:       address,
		stabilizeWait: defaultStabilizeWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RenewIdentity authenticates against the control port, sends SIGNAL
// NEWNYM, and waits for circuits to stabilize.
//
// Concurrent calls are allowed; each uses its own connection and the Tor
// daemon tolerates overlapping NEWNYM signals (it rate-limits them
// internally).
func (c *Controller) RenewIdentity(ctx context.Context) error {
	cmdCtx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(cmdCtx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("failed to connect to control port %s: %w", c.address, err)
	}
	defer conn.Close()

	if deadline, ok := cmdCtx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set control connection deadline: %w", err)
		}
	}

	r := bufio.NewReader(conn)

	auth := "AUTHENTICATE"
	if c.password != "" {
		auth = fmt.Sprintf("AUTHENTICATE %s", quoteControlString(c.password))
	}
	if err := sendCommand(conn, r, auth); err != nil {
		return fmt.Errorf("%w: %v", ErrControlAuthFailed, err)
	}

	if err := sendCommand(conn, r, "SIGNAL NEWNYM"); err != nil {
		return fmt.Errorf("NEWNYM signal rejected: %w", err)
	}

	// Best effort; the daemon closes the connection either way.
	_, _ = fmt.Fprintf(conn, "QUIT\r\n")

	if c.stabilizeWait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.stabilizeWait):
		}
	}
	return nil
}

// sendCommand writes one control command and reads the reply, which must
// carry status 250.
func sendCommand(conn net.Conn, r *bufio.Reader, cmd string) error {
	if _, err := fmt.Fprintf(conn, "%s\r\n", cmd); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	// Replies are one or more "NNN[-+ ]text" lines; "NNN " ends the
	// reply. Only the final status matters here.
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read reply: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 4 {
			return fmt.Errorf("malformed control reply %q", line)
		}

		status, sep := line[:3], line[3]
		if sep == ' ' {
			if status != "250" {
				return fmt.Errorf("control reply %q", line)
			}
			return nil
		}
		if sep != '-' && sep != '+' {
			return fmt.Errorf("malformed control reply %q", line)
		}
	}
}

// quoteControlString wraps s in the control protocol's quoted-string form,
// escaping backslashes and double quotes.
func quoteControlString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
