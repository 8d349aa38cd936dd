package metrics

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Bucket bounds shared by every heatmap: 0 to 10 minutes in nanoseconds,
// 3 significant figures, giving accurate resolution across round trips
// from microseconds to multi-minute timeouts.
const (
	heatmapMinNS           = 0
	heatmapSignificantFigs = 3
)

var heatmapMaxNS = (10 * time.Minute).Nanoseconds()

// Heatmap is a fixed-size ring of HdrHistogram windows sampling latency.
// Writes append to the current window; Rotate (called by
// reporting.Snapshotter: once per general.interval for the response
// heatmap, once per waterfall resolution for the waterfall) seals it and
// opens a fresh one. A ring
// of size 1 gives the response-latency heatmap's single retained window;
// a ring of size `windows` gives the waterfall heatmap's long-horizon
// retention.
type Heatmap struct {
	mu   sync.Mutex
	ring []*hdrhistogram.Histogram
	pos  int
}

// NewHeatmap builds a ring of the given size. size must be >= 1.
func NewHeatmap(size int) *Heatmap {
	if size < 1 {
		size = 1
	}
	h := &Heatmap{ring: make([]*hdrhistogram.Histogram, size)}
	for i := range h.ring {
		h.ring[i] = hdrhistogram.New(heatmapMinNS, heatmapMaxNS, heatmapSignificantFigs)
	}
	return h
}

// Record appends one latency sample, in nanoseconds, to the current
// window. This is the hot-path write every driver task performs after
// classifying a response.
func (h *Heatmap) Record(latencyNS int64) {
	h.mu.Lock()
	_ = h.ring[h.pos].RecordValue(latencyNS)
	h.mu.Unlock()
}

// Rotate seals the current window and advances to the next, discarding
// (for a size-1 ring) or recycling (for a waterfall ring) the oldest
// window's histogram.
func (h *Heatmap) Rotate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pos = (h.pos + 1) % len(h.ring)
	h.ring[h.pos].Reset()
}

// Snapshot returns a copy of the current window's histogram, safe to read
// without holding Heatmap's lock.
func (h *Heatmap) Snapshot() *hdrhistogram.Histogram {
	h.mu.Lock()
	defer h.mu.Unlock()
	return hdrhistogram.Import(h.ring[h.pos].Export())
}

// DumpWaterfall writes one percentile-summary line per retained window to
// path, in rank order from oldest to most recent, at shutdown.
func (h *Heatmap) DumpWaterfall(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics: create waterfall file: %w", err)
	}
	defer f.Close()

	n := len(h.ring)
	for i := 0; i < n; i++ {
		idx := (h.pos + 1 + i) % n // oldest first
		hist := h.ring[idx]
		_, err := fmt.Fprintf(f, "window=%d count=%d p50=%d p90=%d p99=%d p999=%d max=%d\n",
			i, hist.TotalCount(),
			hist.ValueAtQuantile(50), hist.ValueAtQuantile(90),
			hist.ValueAtQuantile(99), hist.ValueAtQuantile(99.9),
			hist.Max())
		if err != nil {
			return fmt.Errorf("metrics: write waterfall file: %w", err)
		}
	}
	return nil
}
