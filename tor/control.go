// Package tor talks to a local Tor control port to request new exit
// circuits. A rotation presents a different apparent network origin to the
// scrape target, which is how the pipeline recovers from detected blocking.
package tor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Spydiecy/Sniffle-Power/utils"
)

var (
	// ErrAuthFailed means the control-port password was rejected (reply 515).
	// Retrying with the same secret is pointless.
	ErrAuthFailed = errors.New("tor: authentication failed")

	// ErrTooSoon means NEWNYM was requested faster than Tor allows (reply
	// 551). The caller should retry later, never busy-loop.
	ErrTooSoon = errors.New("tor: newnym requested too soon")
)

const handshakeTimeout = 5 * time.Second

// Controller issues commands over the Tor control protocol.
type Controller struct {
	addr     string
	password string
	logger   *utils.Logger
}

// NewController creates a Controller for the given control address.
func NewController(addr, password string, logger *utils.Logger) *Controller {
	return &Controller{addr: addr, password: password, logger: logger}
}

// Rotate opens a control connection, authenticates, and signals NEWNYM.
// The whole exchange is bounded by the handshake timeout; an exchange that
// does not complete in time fails with a timeout error.
func (c *Controller) Rotate(ctx context.Context) error {
	dialer := net.Dialer{Timeout: handshakeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("tor: control connect: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return fmt.Errorf("tor: set deadline: %w", err)
	}

	reader := bufio.NewReader(conn)

	if err := c.roundTrip(conn, reader, fmt.Sprintf("AUTHENTICATE %q", c.password)); err != nil {
		return err
	}
	if err := c.roundTrip(conn, reader, "SIGNAL NEWNYM"); err != nil {
		return err
	}

	// Best-effort; Tor closes the connection either way.
	fmt.Fprint(conn, "QUIT\r\n")
	return nil
}

func (c *Controller) roundTrip(conn net.Conn, reader *bufio.Reader, command string) error {
	if _, err := fmt.Fprintf(conn, "%s\r\n", command); err != nil {
		return fmt.Errorf("tor: send %q: %w", command, err)
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("tor: read reply: %w", err)
	}

	switch {
	case strings.HasPrefix(line, "250"):
		return nil
	case strings.HasPrefix(line, "515"):
		return ErrAuthFailed
	case strings.HasPrefix(line, "551"):
		return ErrTooSoon
	default:
		return fmt.Errorf("tor: unexpected reply %q", strings.TrimSpace(line))
	}
}

// HealthCheck probes whether the control port accepts connections. It is
// advisory: the scraper logs the outcome at startup and continues either way.
func (c *Controller) HealthCheck() bool {
	conn, err := net.DialTimeout("tcp", c.addr, handshakeTimeout)
	if err != nil {
		c.logger.Warn("[tor] control port %s not accessible: %v", c.addr, err)
		return false
	}
	conn.Close()
	return true
}
