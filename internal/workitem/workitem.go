// Package workitem defines the unit of work passed from generator tasks to
// driver tasks: a typed command plus pre-materialized, shared-ownership
// byte buffers, so a driver never allocates on its hot path beyond
// protocol framing.
package workitem

import (
	"sync/atomic"

	"github.com/jihwankim/cachebench/internal/workload"
)

// Buffer is an immutable byte slice shared by reference among every
// in-flight WorkItem that carries it. Multiple generator draws may reuse
// the same underlying bytes (e.g. a repeated key under a skewed
// distribution); the refcount only needs to track lifetime for pooled
// callers, since plain Go slices are already safe for concurrent readers.
type Buffer struct {
	data []byte
	refs atomic.Int32
}

// NewBuffer wraps data with an initial reference count of one.
func NewBuffer(data []byte) *Buffer {
	b := &Buffer{data: data}
	b.refs.Store(1)
	return b
}

// Bytes returns the underlying data. Callers must not modify it.
func (b *Buffer) Bytes() []byte { return b.data }

// Retain increments the reference count; call before handing the buffer to
// a second concurrent holder.
func (b *Buffer) Retain() *Buffer {
	b.refs.Add(1)
	return b
}

// Release decrements the reference count. Go's garbage collector reclaims
// the backing array once nothing holds a Buffer pointing at it; Release
// exists so pooled allocators (future work) have a hook to recycle backing
// arrays without waiting on a GC cycle.
func (b *Buffer) Release() {
	b.refs.Add(-1)
}

// sequence is the process-wide monotonically increasing WorkItem counter.
var sequence atomic.Uint64

// WorkItem is a tagged, buffer-carrying record representing one pending
// operation against the target system.
type WorkItem struct {
	Seq     uint64
	Command workload.CommandTag

	Key      *Buffer
	InnerKey *Buffer // nil if the command has no inner key
	Value    *Buffer // nil if the command carries no value

	// InnerKeys holds batch_size independently-drawn fields for
	// HashMultiGet; nil for every other command, which addresses at most
	// one field via InnerKey.
	InnerKeys []*Buffer

	TTL       int64 // seconds; 0 means "no TTL requested"
	BatchSize int

	// Topic and Message are populated only for Publish.
	Topic   *Buffer
	Message *Buffer
}

// New allocates a WorkItem with the next sequence number.
func New(cmd workload.CommandTag) *WorkItem {
	return &WorkItem{
		Seq:     sequence.Add(1),
		Command: cmd,
	}
}

// Release drops every buffer reference this item holds. Drivers call this
// once they are done with an item, after composing and sending the request
// it describes.
func (w *WorkItem) Release() {
	for _, b := range []*Buffer{w.Key, w.InnerKey, w.Value, w.Topic, w.Message} {
		if b != nil {
			b.Release()
		}
	}
	for _, b := range w.InnerKeys {
		b.Release()
	}
}
