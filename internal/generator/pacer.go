package generator

import (
	"context"
	"time"
)

// minTickInterval is the smallest timer period the pacer will schedule,
// amortizing timer overhead for high rates by batching multiple emissions
// per tick instead of ticking once per emission.
const minTickInterval = time.Millisecond

// pacing holds the (quanta, interval) pair a rated generator ticks on:
// quanta items are emitted back-to-back once every interval, chosen so
// quanta/interval approximates the configured rate.
type pacing struct {
	quanta   int
	interval time.Duration
}

// newPacing derives (quanta, interval) for rate r operations/second. For
// r <= 1/minTickInterval.Seconds(), one permit is granted once every
// 1/r seconds (interval never drops below minTickInterval); above that,
// interval stays pinned at minTickInterval and quanta scales up instead.
func newPacing(r float64) pacing {
	if r <= 0 {
		return pacing{quanta: 1, interval: minTickInterval}
	}
	perTick := r * minTickInterval.Seconds()
	if perTick < 1 {
		interval := time.Duration(float64(time.Second) / r)
		if interval < minTickInterval {
			interval = minTickInterval
		}
		return pacing{quanta: 1, interval: interval}
	}
	quanta := int(perTick + 0.5)
	if quanta < 1 {
		quanta = 1
	}
	return pacing{quanta: quanta, interval: minTickInterval}
}

// pacer ticks at p's interval, yielding p.quanta permits per tick. Next
// blocks until the next tick fires, ctx is cancelled, or stop fires first;
// a cancellation observed before the following tick still lets the caller
// finish the permits already granted by the tick that just fired.
type pacer struct {
	p      pacing
	ticker *time.Ticker
}

func newPacer(p pacing) *pacer {
	return &pacer{p: p, ticker: time.NewTicker(p.interval)}
}

func (pc *pacer) stop() { pc.ticker.Stop() }

// next blocks for one tick and returns the quanta granted, or an error if
// ctx is done first.
func (pc *pacer) next(ctx context.Context) (int, error) {
	select {
	case <-pc.ticker.C:
		return pc.p.quanta, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
