// Package ping implements the ping-pong protocol driver: one PING frame
// per work item, one PONG parsed back.
package ping

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jihwankim/cachebench/internal/driver"
	"github.com/jihwankim/cachebench/internal/transport"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

// Connector dials one ping endpoint.
type Connector struct {
	Dialer *transport.Dialer
	Addr   string
}

// Connect opens a TCP connection. Ping has no handshake beyond the TCP
// three-way handshake itself.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Dialer.Dial(ctx, c.Addr)
	if err != nil {
		return nil, fmt.Errorf("ping: connect: %w", err)
	}
	return &pingConn{conn: conn, reader: bufio.NewReader(conn)}, nil
}

type pingConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (c *pingConn) Supports(cmd workload.CommandTag) bool { return cmd == workload.Ping }

// Exchange writes one PING frame and reads one PONG line. The response
// parser is effectively incremental: bufio.Reader.ReadString blocks until
// a full line arrives or the connection's deadline (set once, from ctx,
// below) expires, which is Go's idiomatic equivalent of a WouldBlock-style
// parser retrying reads with a recomputed remaining timeout.
func (c *pingConn) Exchange(ctx context.Context, item *workitem.WorkItem) (driver.Outcome, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(deadline)
	}

	if _, err := c.conn.Write([]byte("PING\r\n")); err != nil {
		return driver.Outcome{}, classifyNetErr(err)
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return driver.Outcome{}, classifyNetErr(err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line != "PONG" {
		return driver.Outcome{}, fmt.Errorf("ping: unexpected response %q", line)
	}
	return driver.Outcome{}, nil
}

func (c *pingConn) Close() error { return c.conn.Close() }

func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return context.DeadlineExceeded
	}
	return err
}
