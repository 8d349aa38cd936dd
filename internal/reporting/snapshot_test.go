package reporting

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jihwankim/cachebench/internal/metrics"
)

func TestSnapshotterRendersCountersAndHeatmap(t *testing.T) {
	counters := metrics.NewCounters()
	counters.Increment(metrics.Request)
	counters.Increment(metrics.RequestOk)

	heatmap := metrics.NewHeatmap(1)
	heatmap.Record(1_000_000)
	heatmap.Record(2_000_000)

	var buf bytes.Buffer
	s := &Snapshotter{Out: &buf, Counters: counters, Heatmap: heatmap, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	out := buf.String()
	if !strings.Contains(out, metrics.Request) {
		t.Fatalf("expected REQUEST counter in output, got %q", out)
	}
	if !strings.Contains(out, "response-latency") {
		t.Fatalf("expected a response-latency line, got %q", out)
	}
}

func TestSnapshotterRotatesResponseHeatmapEachInterval(t *testing.T) {
	counters := metrics.NewCounters()
	heatmap := metrics.NewHeatmap(1)
	heatmap.Record(1_000_000)

	var buf bytes.Buffer
	s := &Snapshotter{Out: &buf, Counters: counters, Heatmap: heatmap, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if count := heatmap.Snapshot().TotalCount(); count != 0 {
		t.Fatalf("expected the single recorded sample to have rotated out, got count=%d", count)
	}
}

func TestSnapshotterRotatesWaterfallOnItsOwnInterval(t *testing.T) {
	counters := metrics.NewCounters()
	heatmap := metrics.NewHeatmap(1)
	waterfall := metrics.NewHeatmap(3)
	waterfall.Record(5_000_000)

	var buf bytes.Buffer
	s := &Snapshotter{
		Out:               &buf,
		Counters:          counters,
		Heatmap:           heatmap,
		Interval:          time.Hour, // never fires during the test
		Waterfall:         waterfall,
		WaterfallInterval: 10 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if count := waterfall.Snapshot().TotalCount(); count != 0 {
		t.Fatalf("expected the waterfall window to have rotated independently of Interval, got count=%d", count)
	}
}

func TestSnapshotterHandlesEmptyHeatmap(t *testing.T) {
	counters := metrics.NewCounters()
	heatmap := metrics.NewHeatmap(1)

	var buf bytes.Buffer
	s := &Snapshotter{Out: &buf, Counters: counters, Heatmap: heatmap, Interval: time.Hour}
	s.renderOnce()

	if !strings.Contains(buf.String(), "no samples") {
		t.Fatalf("expected empty-heatmap message, got %q", buf.String())
	}
}
