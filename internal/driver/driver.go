// Package driver implements the common per-connection task loop every
// protocol plugs into: connect under timeout, pull work items, compose
// and exchange a request, classify the outcome, and update counters and
// the latency heatmap. Protocol specifics live in the driver/<protocol>
// subpackages behind the Connector/Conn capability interfaces.
package driver

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jihwankim/cachebench/internal/metrics"
	"github.com/jihwankim/cachebench/internal/queue"
	"github.com/jihwankim/cachebench/internal/ratelimit"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

// Status classifies a completed exchange.
type Status int

const (
	StatusOK Status = iota
	StatusException
)

// Outcome is what a Conn reports back after Exchange returns successfully
// (errors are reported through Exchange's error return instead, for
// transport faults and timeouts).
type Outcome struct {
	Hit         *bool // nil when the command has no hit/miss notion
	Stored      bool
	Deleted     bool
	ServerClose bool // server signaled the connection should close
}

// Conn is one live transport a driver task owns exclusively. It is never
// shared across tasks.
type Conn interface {
	// Supports reports whether this protocol implements cmd. Unsupported
	// commands are counted and skipped without affecting the transport.
	Supports(cmd workload.CommandTag) bool
	// Exchange composes the request for item, sends it, and awaits the
	// response until ctx is done. A context.DeadlineExceeded error is
	// classified as a timeout; any other error is a protocol exception.
	Exchange(ctx context.Context, item *workitem.WorkItem) (Outcome, error)
	Close() error
}

// Connector opens a fresh Conn to one endpoint, performing any protocol
// handshake (TLS, HTTP upgrade, cache-service auth) before returning.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// Task runs one driver's main loop against one Connector: connect, pull
// work, exchange, classify, repeat.
type Task struct {
	Connector        Connector
	Queue            *queue.Queue
	Counters         *metrics.Counters
	ResponseHeatmap  *metrics.Heatmap
	WaterfallHeatmap *metrics.Heatmap // nil when waterfall.file is unconfigured
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	Running          *atomic.Bool
	ConnectLimiter   *ratelimit.Limiter // nil when connection.ratelimit is unset
	ReconnectLimiter *ratelimit.Limiter // nil when connection.reconnect is unset
	RequestLimiter   *ratelimit.Limiter // nil when request.ratelimit is unset
}

// Run blocks until RUNNING is cleared or the queue closes. Every
// suspension point is bounded by a timeout or a RUNNING check on the next
// iteration, so cancellation is never more than one suspension away.
func (t *Task) Run(ctx context.Context) {
	var conn Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for t.Running.Load() {
		if conn == nil {
			conn = t.connectWithRetry(ctx)
			if conn == nil {
				return // shutdown requested while reconnecting
			}
		}

		item, err := t.Queue.Recv(ctx)
		if err != nil {
			return // ChannelClosed: exit cleanly, no counter incremented
		}

		if item.Command == workload.Reconnect {
			conn.Close()
			conn = nil
			t.Counters.Increment(metrics.SessionClosedClient)
			t.Counters.Increment(metrics.RequestReconnect)
			item.Release()
			continue
		}

		if !conn.Supports(item.Command) {
			t.Counters.Increment(metrics.RequestUnsupported)
			item.Release()
			continue
		}

		if t.RequestLimiter != nil {
			if err := t.RequestLimiter.Acquire(ctx); err != nil {
				item.Release()
				continue
			}
		}

		conn = t.exchangeOne(ctx, conn, item)
		item.Release()
	}
}

// exchangeOne runs steps 5-8 of the common contract for one item, closing
// and dropping the transport on any fault so the next loop iteration
// reconnects. It returns the (possibly nil) surviving connection.
func (t *Task) exchangeOne(ctx context.Context, conn Conn, item *workitem.WorkItem) Conn {
	t.Counters.Increment(metrics.Request)

	reqCtx, cancel := context.WithTimeout(ctx, t.RequestTimeout)
	t0 := time.Now()
	outcome, err := conn.Exchange(reqCtx, item)
	elapsed := time.Since(t0)
	cancel()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		t.Counters.Increment(metrics.ResponseTimeout)
		t.Counters.Increment(metrics.SessionClosedClient)
		conn.Close()
		return nil

	case err != nil:
		t.Counters.Increment(metrics.ResponseEx)
		t.Counters.Increment(metrics.CommandCounterName(item.Command, "EX"))
		t.Counters.Increment(metrics.SessionClosedClient)
		conn.Close()
		return nil

	default:
		t.Counters.Increment(metrics.ResponseOk)
		t.Counters.Increment(metrics.RequestOk)
		t.Counters.Increment(metrics.CommandCounterName(item.Command, "OK"))
		if outcome.Hit != nil {
			if *outcome.Hit {
				t.Counters.Increment(metrics.CommandCounterName(item.Command, "HIT"))
			} else {
				t.Counters.Increment(metrics.CommandCounterName(item.Command, "MISS"))
			}
		}
		if outcome.Stored {
			t.Counters.Increment(metrics.CommandCounterName(item.Command, "STORED"))
		}
		if outcome.Deleted {
			t.Counters.Increment(metrics.CommandCounterName(item.Command, "DELETED"))
		}
		t.ResponseHeatmap.Record(elapsed.Nanoseconds())
		if t.WaterfallHeatmap != nil {
			t.WaterfallHeatmap.Record(elapsed.Nanoseconds())
		}

		if outcome.ServerClose {
			t.Counters.Increment(metrics.SessionClosedServer)
			conn.Close()
			return nil
		}
		return conn
	}
}

// connectWithRetry implements step 1 of the common contract: consult the
// connect limiter, dial under connection.timeout, retry with a 100ms
// backoff on failure, until either it succeeds or RUNNING clears.
func (t *Task) connectWithRetry(ctx context.Context) Conn {
	for t.Running.Load() {
		if t.ConnectLimiter != nil {
			if err := t.ConnectLimiter.Acquire(ctx); err != nil {
				return nil
			}
		}

		cctx, cancel := context.WithTimeout(ctx, t.ConnectTimeout)
		conn, err := t.Connector.Connect(cctx)
		cancel()
		if err == nil {
			t.Counters.Increment(metrics.Session)
			t.Counters.Increment(metrics.Connect)
			return conn
		}

		if errors.Is(err, context.DeadlineExceeded) {
			t.Counters.Increment(metrics.ConnectTimeout)
		} else {
			t.Counters.Increment(metrics.ConnectEx)
		}

		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

