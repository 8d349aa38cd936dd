package reporting

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jihwankim/cachebench/internal/metrics"
)

// Snapshotter periodically renders the counter set and response-latency
// heatmap as text lines on a fixed interval, and rotates both the
// response-latency and (if configured) waterfall heatmaps so each is a
// fixed window of samples rather than one ever-accumulating histogram.
type Snapshotter struct {
	Out      io.Writer
	Counters *metrics.Counters
	Heatmap  *metrics.Heatmap
	Interval time.Duration

	// Waterfall and WaterfallInterval are set only when waterfall.file is
	// configured; Waterfall rotates on its own cadence (waterfall.resolution,
	// defaulting to Interval), independent of the response heatmap.
	Waterfall         *metrics.Heatmap
	WaterfallInterval time.Duration
}

// Run renders one snapshot every Interval until ctx is cancelled, rotating
// Heatmap after each render and Waterfall on its own ticker.
func (s *Snapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	var waterfallC <-chan time.Time
	if s.Waterfall != nil {
		wi := s.WaterfallInterval
		if wi <= 0 {
			wi = s.Interval
		}
		waterfallTicker := time.NewTicker(wi)
		defer waterfallTicker.Stop()
		waterfallC = waterfallTicker.C
	}

	for {
		select {
		case <-ticker.C:
			s.renderOnce()
			s.Heatmap.Rotate()
		case <-waterfallC:
			s.Waterfall.Rotate()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Snapshotter) renderOnce() {
	fmt.Fprintf(s.Out, "[snapshot %s]\n", time.Now().Format(time.RFC3339))
	for _, sample := range s.Counters.Snapshot() {
		fmt.Fprintf(s.Out, "  %-28s %d\n", sample.Name, sample.Value)
	}

	hist := s.Heatmap.Snapshot()
	if hist.TotalCount() == 0 {
		fmt.Fprintln(s.Out, "  response-latency: no samples this window")
		return
	}
	fmt.Fprintf(s.Out, "  response-latency: p50=%dns p90=%dns p99=%dns max=%dns (n=%d)\n",
		hist.ValueAtQuantile(50), hist.ValueAtQuantile(90), hist.ValueAtQuantile(99),
		hist.Max(), hist.TotalCount())
}
