// Package http2 implements the HTTP/2 driver: one connection per task,
// driven through golang.org/x/net/http2's explicit client-connection API.
// Each connection carries one request (one stream) at a time; requests are
// not multiplexed concurrently over it.
package http2

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/net/http2"

	"github.com/jihwankim/cachebench/internal/driver"
	"github.com/jihwankim/cachebench/internal/transport"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

// Connector dials one HTTP/2 endpoint and upgrades it to an h2
// client connection.
type Connector struct {
	Dialer *transport.Dialer
	Addr   string
	Scheme string // "http" (h2c) or "https"; defaults to "http"
}

// Connect opens the TCP connection and performs the h2 client-connection
// handshake (HTTP/2 connection preface plus SETTINGS exchange).
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Dialer.Dial(ctx, c.Addr)
	if err != nil {
		return nil, fmt.Errorf("http2: connect: %w", err)
	}

	// AllowHTTP permits the h2c (cleartext) preface used by
	// NewClientConn's handshake over an already-dialed plain TCP
	// connection; TLS-based h2 negotiates ALPN during the dial instead,
	// independent of this field.
	tr := &http2.Transport{AllowHTTP: true}
	cc, err := tr.NewClientConn(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("http2: client handshake: %w", err)
	}

	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return &http2Conn{cc: cc, addr: c.Addr, scheme: scheme}, nil
}

type http2Conn struct {
	cc     *http2.ClientConn
	addr   string
	scheme string
}

func (c *http2Conn) Supports(cmd workload.CommandTag) bool { return cmd == workload.Get }

// Exchange issues one request over the task's client connection. The
// connection belongs to a single Task, which issues one Exchange at a
// time, so at most one stream is in flight on cc.
func (c *http2Conn) Exchange(ctx context.Context, item *workitem.WorkItem) (driver.Outcome, error) {
	if item.Command != workload.Get {
		return driver.Outcome{}, fmt.Errorf("http2: unsupported command %s", item.Command)
	}

	url := fmt.Sprintf("%s://%s/%s", c.scheme, c.addr, string(item.Key.Bytes()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return driver.Outcome{}, fmt.Errorf("http2: build request: %w", err)
	}
	req.Host = c.addr

	resp, err := c.cc.RoundTrip(req)
	if err != nil {
		if ctx.Err() != nil {
			return driver.Outcome{}, context.DeadlineExceeded
		}
		return driver.Outcome{}, fmt.Errorf("http2: round trip: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		hit := true
		return driver.Outcome{Hit: &hit}, nil
	case resp.StatusCode == http.StatusNotFound:
		hit := false
		return driver.Outcome{Hit: &hit}, nil
	default:
		return driver.Outcome{}, fmt.Errorf("http2: unexpected status %d", resp.StatusCode)
	}
}

func (c *http2Conn) Close() error {
	return c.cc.Close()
}
