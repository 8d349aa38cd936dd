// Package metrics implements the flat counter set and latency heatmaps
// every driver task writes into: monotonic counters addressed by
// well-known names, and two HdrHistogram-backed windowed heatmaps.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jihwankim/cachebench/internal/workload"
)

// Well-known counter names.
const (
	Connect             = "CONNECT"
	ConnectEx           = "CONNECT_EX"
	ConnectTimeout      = "CONNECT_TIMEOUT"
	Session             = "SESSION"
	SessionClosedClient = "SESSION_CLOSED_CLIENT"
	SessionClosedServer = "SESSION_CLOSED_SERVER"
	Request             = "REQUEST"
	RequestOk           = "REQUEST_OK"
	RequestReconnect    = "REQUEST_RECONNECT"
	RequestUnsupported  = "REQUEST_UNSUPPORTED"
	ResponseOk          = "RESPONSE_OK"
	ResponseEx          = "RESPONSE_EX"
	ResponseTimeout     = "RESPONSE_TIMEOUT"
)

// CommandCounterName builds a per-command counter name, e.g.
// CommandCounterName(workload.Get, "OK") == "GET_OK".
func CommandCounterName(cmd workload.CommandTag, suffix string) string {
	return strings.ToUpper(string(cmd)) + "_" + suffix
}

// Counters is the process-wide flat counter set. Each write takes a read
// lock to look up the named atomic counter (a write lock the first time a
// name is seen) and then increments it atomically; writes are not
// lock-free. A CounterVec, which has its own locking, mirrors every value for the admin
// endpoint's scrape interface (the endpoint itself is out of scope — only
// this read surface is specified).
type Counters struct {
	mu     sync.RWMutex
	values map[string]*atomic.Uint64
	vec    *prometheus.CounterVec
}

// NewCounters builds an empty counter set.
func NewCounters() *Counters {
	return &Counters{
		values: make(map[string]*atomic.Uint64),
		vec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cachebench",
			Name:      "counter_total",
			Help:      "Flat monotonic counters keyed by well-known name.",
		}, []string{"name"}),
	}
}

// Collector returns the prometheus.Collector to register with a registry
// that backs the admin endpoint, if one is wired in.
func (c *Counters) Collector() prometheus.Collector { return c.vec }

func (c *Counters) counter(name string) *atomic.Uint64 {
	c.mu.RLock()
	v, ok := c.values[name]
	c.mu.RUnlock()
	if ok {
		return v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[name]; ok {
		return v
	}
	v = &atomic.Uint64{}
	c.values[name] = v
	return v
}

// Increment adds 1 to the named counter.
func (c *Counters) Increment(name string) {
	c.Add(name, 1)
}

// Add adds n to the named counter.
func (c *Counters) Add(name string, n uint64) {
	c.counter(name).Add(n)
	c.vec.WithLabelValues(name).Add(float64(n))
}

// Value returns the current value of the named counter, or 0 if never
// written.
func (c *Counters) Value(name string) uint64 {
	c.mu.RLock()
	v, ok := c.values[name]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	return v.Load()
}

// Snapshot returns every counter's current value, sorted by name, for text
// reporting.
func (c *Counters) Snapshot() []CounterSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CounterSample, 0, len(c.values))
	for name, v := range c.values {
		out = append(out, CounterSample{Name: name, Value: v.Load()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CounterSample is one named counter's value at snapshot time.
type CounterSample struct {
	Name  string
	Value uint64
}
