// Package http1 implements the HTTP/1.1 driver: one connection per task,
// Get-only, with an authority-matching Host header on every request.
package http1

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/jihwankim/cachebench/internal/driver"
	"github.com/jihwankim/cachebench/internal/transport"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

// Connector dials one HTTP/1.1 endpoint.
type Connector struct {
	Dialer *transport.Dialer
	Addr   string
	Scheme string // "http" or "https"; defaults to "http" when empty
}

// Connect dials a probe connection up front (so the common driver loop's
// CONNECT/SESSION accounting reflects reality), closes it, and builds an
// http.Client whose transport dials its own connection, capped at one via
// MaxConnsPerHost: 1.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.Dialer.Dial(ctx, c.Addr)
	if err != nil {
		return nil, fmt.Errorf("http1: connect: %w", err)
	}
	conn.Close() // the handshake probe; the transport below dials its own

	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}

	tr := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return c.Dialer.Dial(ctx, c.Addr)
		},
		MaxConnsPerHost:   1,
		DisableKeepAlives: false,
		ForceAttemptHTTP2: false,
	}

	return &http1Conn{
		client: &http.Client{Transport: tr},
		addr:   c.Addr,
		scheme: scheme,
	}, nil
}

type http1Conn struct {
	client *http.Client
	addr   string
	scheme string
}

func (c *http1Conn) Supports(cmd workload.CommandTag) bool { return cmd == workload.Get }

func (c *http1Conn) Exchange(ctx context.Context, item *workitem.WorkItem) (driver.Outcome, error) {
	if item.Command != workload.Get {
		return driver.Outcome{}, fmt.Errorf("http1: unsupported command %s", item.Command)
	}

	url := fmt.Sprintf("%s://%s/%s", c.scheme, c.addr, string(item.Key.Bytes()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return driver.Outcome{}, fmt.Errorf("http1: build request: %w", err)
	}
	req.Host = c.addr // authority-matching Host header

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return driver.Outcome{}, context.DeadlineExceeded
		}
		return driver.Outcome{}, fmt.Errorf("http1: do: %w", err)
	}
	defer resp.Body.Close()

	serverClose := resp.Close || resp.Header.Get("Connection") == "close"

	switch {
	case resp.StatusCode == http.StatusOK:
		hit := true
		return driver.Outcome{Hit: &hit, ServerClose: serverClose}, nil
	case resp.StatusCode == http.StatusNotFound:
		hit := false
		return driver.Outcome{Hit: &hit, ServerClose: serverClose}, nil
	default:
		return driver.Outcome{}, fmt.Errorf("http1: unexpected status %d", resp.StatusCode)
	}
}

func (c *http1Conn) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
