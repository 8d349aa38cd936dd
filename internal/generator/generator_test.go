package generator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jihwankim/cachebench/internal/queue"
	"github.com/jihwankim/cachebench/internal/ratelimit"
	"github.com/jihwankim/cachebench/internal/sampler"
	"github.com/jihwankim/cachebench/internal/workload"
)

func readOnlyKeyspace() *workload.Keyspace {
	return &workload.Keyspace{
		Length:      8,
		Weight:      1,
		Cardinality: 100,
		KeyType:     workload.Alphanumeric,
		KeyDistribution: workload.KeyDistribution{
			Model: workload.Uniform,
		},
		Commands: []workload.WeightedCommand{
			{Verb: workload.Get, Weight: 1},
		},
	}
}

func writeKeyspace() *workload.Keyspace {
	return &workload.Keyspace{
		Length:      8,
		Weight:      1,
		Cardinality: 100,
		KeyType:     workload.U32,
		KeyDistribution: workload.KeyDistribution{
			Model: workload.Uniform,
		},
		Commands: []workload.WeightedCommand{
			{Verb: workload.Set, Weight: 1},
		},
		Values: []workload.ValueSpec{
			{Length: 16, FieldType: workload.FieldAlphanumeric, Weight: 1},
		},
	}
}

func publishKeyspace() *workload.Keyspace {
	return &workload.Keyspace{
		Length:      8,
		Weight:      1,
		Cardinality: 100,
		KeyType:     workload.Alphanumeric,
		KeyDistribution: workload.KeyDistribution{
			Model: workload.Uniform,
		},
		Commands: []workload.WeightedCommand{
			{Verb: workload.Publish, Weight: 1},
		},
		Values: []workload.ValueSpec{
			{Length: 16, FieldType: workload.FieldAlphanumeric, Weight: 1},
		},
		Topics: []workload.TopicSpec{
			{Name: "orders", Weight: 1},
		},
	}
}

func hashMultiGetKeyspace(batchSize int) *workload.Keyspace {
	return &workload.Keyspace{
		Length:      8,
		Weight:      1,
		Cardinality: 100,
		KeyType:     workload.Alphanumeric,
		KeyDistribution: workload.KeyDistribution{
			Model: workload.Uniform,
		},
		Commands: []workload.WeightedCommand{
			{Verb: workload.HashMultiGet, Weight: 1},
		},
		InnerKeys: []workload.InnerKeySpec{
			{Length: 4, FieldType: workload.FieldAlphanumeric, Cardinality: 10, Weight: 1},
		},
		BatchSize: batchSize,
	}
}

func TestDrawPopulatesTopicAndMessageForPublish(t *testing.T) {
	task := &Task{
		Sampler: sampler.NewKeyspaceSampler(publishKeyspace()),
		RNG:     sampler.NewRNG(3),
	}

	item := task.draw()
	if item.Topic == nil {
		t.Fatal("expected a topic buffer for Publish")
	}
	if string(item.Topic.Bytes()) != "orders" {
		t.Fatalf("expected topic %q, got %q", "orders", item.Topic.Bytes())
	}
	if item.Message == nil {
		t.Fatal("expected a message buffer for Publish")
	}
	if item.Value == nil {
		t.Fatal("expected a value buffer for Publish (it is a write command)")
	}
	if string(item.Message.Bytes()) != string(item.Value.Bytes()) {
		t.Fatalf("expected message to alias value bytes, got message=%q value=%q",
			item.Message.Bytes(), item.Value.Bytes())
	}
}

func TestDrawBatchesInnerKeysForHashMultiGet(t *testing.T) {
	task := &Task{
		Sampler: sampler.NewKeyspaceSampler(hashMultiGetKeyspace(5)),
		RNG:     sampler.NewRNG(4),
	}

	item := task.draw()
	if item.InnerKey != nil {
		t.Fatal("expected InnerKey to stay nil for HashMultiGet; fields belong in InnerKeys")
	}
	if len(item.InnerKeys) != 5 {
		t.Fatalf("expected 5 inner keys for batch_size=5, got %d", len(item.InnerKeys))
	}
}

func TestDrawDefaultsHashMultiGetBatchToOne(t *testing.T) {
	task := &Task{
		Sampler: sampler.NewKeyspaceSampler(hashMultiGetKeyspace(0)),
		RNG:     sampler.NewRNG(5),
	}

	item := task.draw()
	if len(item.InnerKeys) != 1 {
		t.Fatalf("expected 1 inner key when batch_size is unset, got %d", len(item.InnerKeys))
	}
}

func TestUnratedTaskFillsQueueUntilStopped(t *testing.T) {
	ks := writeKeyspace()
	q := queue.New(4)
	var running atomic.Bool
	running.Store(true)

	task := &Task{
		Sampler: sampler.NewKeyspaceSampler(ks),
		RNG:     sampler.NewRNG(1),
		Queue:   q,
		Running: &running,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	item, err := q.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if item.Command != workload.Set {
		t.Fatalf("expected a Set item, got %s", item.Command)
	}
	if item.Value == nil {
		t.Fatal("expected a value buffer for a write command")
	}
	if len(item.Key.Bytes()) != 8 {
		t.Fatalf("expected 8-byte key, got %d", len(item.Key.Bytes()))
	}

	running.Store(false)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not stop after Running cleared")
	}
}

func TestRatedTaskRespectsQuantaPerTick(t *testing.T) {
	ks := readOnlyKeyspace()
	q := queue.New(1000)
	var running atomic.Bool
	running.Store(true)

	rate := 5000.0 // well above 1/minTickInterval, forces quanta > 1
	if p := newPacing(rate); p.quanta < 2 || p.interval != minTickInterval {
		t.Fatalf("newPacing(%v) = %+v, want quanta > 1 at minTickInterval", rate, p)
	}
	task := &Task{
		Sampler: sampler.NewKeyspaceSampler(ks),
		RNG:     sampler.NewRNG(2),
		Queue:   q,
		Running: &running,
		Rate:    &rate,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()

	<-ctx.Done()
	running.Store(false)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rated task did not stop after context expired")
	}
}

func TestReconnectInjectorPacesOnLimiter(t *testing.T) {
	q := queue.New(4)
	lim := ratelimit.New(1000, ratelimit.Smooth)
	var running atomic.Bool
	running.Store(true)

	injector := &ReconnectInjector{Queue: q, Limiter: lim, Running: &running}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- injector.Run(ctx) }()

	item, err := q.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if item.Command != workload.Reconnect {
		t.Fatalf("expected a Reconnect item, got %s", item.Command)
	}

	running.Store(false)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect injector did not stop")
	}
}

func TestGroupRunStopsAllTasksOnCancel(t *testing.T) {
	q := queue.New(1024)
	var running atomic.Bool
	running.Store(true)

	g := NewGroup([]workload.Keyspace{*readOnlyKeyspace(), *writeKeyspace()}, q, &running, 42)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, nil) }()

	// Drain a few items to prove both tasks are producing.
	for i := 0; i < 10; i++ {
		if _, err := q.Recv(ctx); err != nil {
			t.Fatalf("Recv: %v", err)
		}
	}

	running.Store(false)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("group did not stop all tasks")
	}
}
