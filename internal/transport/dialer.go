// Package transport builds the connections every driver task dials: plain
// TCP or TLS, under a connect timeout, gated by the connect-domain rate
// limiter.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/jihwankim/cachebench/internal/config"
	"github.com/jihwankim/cachebench/internal/ratelimit"
)

// Dialer opens connections to one endpoint under connection.timeout,
// optionally wrapped in TLS, consulting a shared connect-rate limiter
// before every attempt.
type Dialer struct {
	timeout    time.Duration
	tlsConfig  *tls.Config
	connectLim *ratelimit.Limiter // nil when connection.ratelimit is unset
}

// NewDialer builds a Dialer from the connection and tls sections of a
// Config, and an optional connect-rate limiter (nil means unrated).
func NewDialer(conn config.Connection, tlsCfg *config.TLS, connectLim *ratelimit.Limiter) (*Dialer, error) {
	d := &Dialer{timeout: conn.Timeout, connectLim: connectLim}

	if tlsCfg == nil {
		return d, nil
	}

	tc := &tls.Config{InsecureSkipVerify: !tlsCfg.Verify}
	if tlsCfg.CA != "" {
		pem, err := os.ReadFile(tlsCfg.CA)
		if err != nil {
			return nil, fmt.Errorf("transport: read CA %s: %w", tlsCfg.CA, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("transport: %s contains no usable certificates", tlsCfg.CA)
		}
		tc.RootCAs = pool
	}
	if tlsCfg.Cert != "" && tlsCfg.Key != "" {
		cert, err := tls.LoadX509KeyPair(tlsCfg.Cert, tlsCfg.Key)
		if err != nil {
			return nil, fmt.Errorf("transport: load keypair: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	d.tlsConfig = tc
	return d, nil
}

// Dial opens a connection to addr, consulting the connect rate limiter
// first and enforcing the connect timeout via ctx. Callers pass a context
// already bounded by connection.timeout, or use DialTimeout.
func (d *Dialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	if d.connectLim != nil {
		if err := d.connectLim.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("transport: connect rate limiter: %w", err)
		}
	}

	dialer := &net.Dialer{}
	if d.tlsConfig != nil {
		return (&tls.Dialer{NetDialer: dialer, Config: d.tlsConfig}).DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

// DialTimeout opens a connection to addr, bounding the whole dial
// (including any rate-limiter wait) by the configured connection timeout.
func (d *Dialer) DialTimeout(addr string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.Dial(ctx, addr)
}
