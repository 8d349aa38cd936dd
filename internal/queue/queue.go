// Package queue implements the bounded multi-producer multi-consumer work
// queue generator tasks submit into and driver tasks pull from. A buffered
// Go channel already gives FIFO-per-producer ordering, blocking send/recv,
// and closed-channel detection, so the queue is a thin typed wrapper
// rather than a reimplementation.
package queue

import (
	"context"
	"errors"

	"github.com/jihwankim/cachebench/internal/workitem"
)

// ErrClosed is returned by Send and Recv once the queue has been closed and
// (for Recv) drained.
var ErrClosed = errors.New("queue: closed")

// Queue is a bounded MPMC channel of *workitem.WorkItem.
type Queue struct {
	ch chan *workitem.WorkItem
}

// New builds a queue with the given capacity. Callers default capacity to
// max(1024, 16 × total driver tasks) unless configured otherwise.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan *workitem.WorkItem, capacity)}
}

// DefaultCapacity returns the default queue capacity for a pool running
// totalDriverTasks concurrent driver tasks.
func DefaultCapacity(totalDriverTasks int) int {
	c := 16 * totalDriverTasks
	if c < 1024 {
		return 1024
	}
	return c
}

// Send enqueues an item, suspending if the queue is full. It returns
// ErrClosed if the queue is closed before or while sending, and ctx.Err()
// if ctx is canceled first — the generator's RUNNING check happens at this
// suspension point.
func (q *Queue) Send(ctx context.Context, item *workitem.WorkItem) (err error) {
	// A send on a closed channel panics; report it as ErrClosed instead.
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv dequeues an item, suspending if the queue is empty. It returns
// ErrClosed once the queue is closed and fully drained.
func (q *Queue) Recv(ctx context.Context) (*workitem.WorkItem, error) {
	select {
	case item, ok := <-q.ch:
		if !ok {
			return nil, ErrClosed
		}
		return item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close signals every consumer that no more items will be sent. Calling
// Close more than once panics, matching close(chan)'s own semantics — the
// runtime owns the single authoritative Close call.
func (q *Queue) Close() {
	close(q.ch)
}
