// Package generator turns keyspace samplers into a stream of WorkItems fed
// into the bounded work queue, one task per keyspace, run under an
// errgroup.Group so any task's error is observable and the rest shut down
// together.
package generator

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jihwankim/cachebench/internal/queue"
	"github.com/jihwankim/cachebench/internal/ratelimit"
	"github.com/jihwankim/cachebench/internal/sampler"
	"github.com/jihwankim/cachebench/internal/workitem"
	"github.com/jihwankim/cachebench/internal/workload"
)

// Task draws work items from one keyspace sampler and submits them to a
// shared queue, either in a tight backpressure-regulated loop (Rate == nil)
// or paced to a target rate via a quanta/interval ticker (Rate != nil).
//
// The config schema (§6 in the design notes) places the only configurable
// rate knobs at the connection/request domain, not per keyspace, so the
// runtime always constructs Task with Rate == nil and leaves throughput
// governance to the request-domain ratelimit.Limiter consulted by driver
// tasks; the rated path is implemented and tested here for a spec fully
// independent of that wiring decision.
type Task struct {
	Sampler *sampler.KeyspaceSampler
	RNG     *sampler.RNG
	Queue   *queue.Queue
	Running *atomic.Bool

	// Rate is operations/second for this task's own emission pacing.
	// nil means unrated: tight loop, backpressure via Queue.Send.
	Rate *float64
}

// Run submits work items until ctx is cancelled or Running is cleared.
// Returns nil on any form of the queue going away (queue.ErrClosed) or an
// unrated/rated loop observing Running false; returns ctx.Err() only when
// ctx itself is cancelled out from under a healthy queue, matching the
// driver contract's "ChannelClosed ends a task cleanly" rule.
func (t *Task) Run(ctx context.Context) error {
	if t.Rate == nil {
		return t.runUnrated(ctx)
	}
	return t.runRated(ctx)
}

func (t *Task) runUnrated(ctx context.Context) error {
	for t.Running.Load() {
		item := t.draw()
		if err := t.Queue.Send(ctx, item); err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t *Task) runRated(ctx context.Context) error {
	pc := newPacer(newPacing(*t.Rate))
	defer pc.stop()

	for t.Running.Load() {
		quanta, err := pc.next(ctx)
		if err != nil {
			return nil
		}
		for i := 0; i < quanta; i++ {
			if !t.Running.Load() {
				return nil
			}
			item := t.draw()
			if err := t.Queue.Send(ctx, item); err != nil {
				if errors.Is(err, queue.ErrClosed) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// draw samples one full work item: command, key, and (when the command
// needs them) inner key and value.
func (t *Task) draw() *workitem.WorkItem {
	cmd := t.Sampler.ChooseCommand(t.RNG)
	item := workitem.New(cmd)
	item.Key = workitem.NewBuffer(t.Sampler.GenerateKey(t.RNG))

	if cmd == workload.HashMultiGet {
		n := t.Sampler.Keyspace().BatchSize
		if n < 1 {
			n = 1
		}
		item.InnerKeys = make([]*workitem.Buffer, 0, n)
		for i := 0; i < n; i++ {
			if ik, ok := t.Sampler.GenerateInnerKey(t.RNG); ok {
				item.InnerKeys = append(item.InnerKeys, workitem.NewBuffer(ik))
			}
		}
	} else if cmd.NeedsInnerKey() {
		if ik, ok := t.Sampler.GenerateInnerKey(t.RNG); ok {
			item.InnerKey = workitem.NewBuffer(ik)
		}
	}
	if cmd.IsWrite() {
		if v, ok := t.Sampler.GenerateValue(t.RNG); ok {
			item.Value = workitem.NewBuffer(v)
		}
	}
	if cmd == workload.Publish {
		if topic, ok := t.Sampler.GenerateTopic(t.RNG); ok {
			item.Topic = workitem.NewBuffer(topic)
		}
		if item.Value != nil {
			item.Message = item.Value.Retain()
		}
	}

	ks := t.Sampler.Keyspace()
	if ks.TTL > 0 {
		item.TTL = int64(ks.TTL.Seconds())
	}
	item.BatchSize = ks.BatchSize

	return item
}

// Group runs one Task per keyspace concurrently under an errgroup.Group,
// returning the first non-nil error any task reports (ctx cancellation
// propagates to the rest automatically).
type Group struct {
	tasks []*Task
}

// NewGroup builds one unrated Task per keyspace sampler, seeding each
// task's RNG independently so concurrent draws never share generator
// state.
func NewGroup(keyspaces []workload.Keyspace, q *queue.Queue, running *atomic.Bool, seed int64) *Group {
	g := &Group{tasks: make([]*Task, len(keyspaces))}
	for i := range keyspaces {
		g.tasks[i] = &Task{
			Sampler: sampler.NewKeyspaceSampler(&keyspaces[i]),
			RNG:     sampler.NewRNG(seed + int64(i)),
			Queue:   q,
			Running: running,
		}
	}
	return g
}

// ReconnectInjector periodically submits Reconnect work items, paced by
// the connection-domain reconnect rate limiter (§4.3's "reconnect"
// domain), simulating externally-triggered transport churn.
type ReconnectInjector struct {
	Queue   *queue.Queue
	Limiter *ratelimit.Limiter
	Running *atomic.Bool
}

// Run submits one Reconnect item per limiter token until ctx is cancelled,
// Running clears, or the queue closes.
func (r *ReconnectInjector) Run(ctx context.Context) error {
	for r.Running.Load() {
		if err := r.Limiter.Acquire(ctx); err != nil {
			return nil
		}
		if !r.Running.Load() {
			return nil
		}
		item := workitem.New(workload.Reconnect)
		if err := r.Queue.Send(ctx, item); err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Run launches every keyspace task plus an optional reconnect injector
// under one errgroup.Group and blocks until they all return.
func (g *Group) Run(ctx context.Context, reconnect *ReconnectInjector) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, task := range g.tasks {
		task := task
		eg.Go(func() error { return task.Run(ctx) })
	}
	if reconnect != nil {
		eg.Go(func() error { return reconnect.Run(ctx) })
	}
	return eg.Wait()
}
