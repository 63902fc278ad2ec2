package queue

import (
	"context"
	"sync"
	"time"
)

// Broker is a named FIFO work channel with at-least-once delivery to one
// consumer. Payloads are opaque bytes; the ingest queue carries job keys,
// the error queue carries failure payloads.
type Broker interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
	// Dequeue blocks up to timeout and returns (nil, nil) when the queue
	// stayed empty, so worker loops can re-check their context.
	Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	Close() error
}

// MemoryBroker is the in-process Broker used by tests and single-node
// local runs. Delivery order is FIFO per queue.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan []byte
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string]chan []byte)}
}

func (b *MemoryBroker) channel(queue string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[queue]
	if !ok {
		ch = make(chan []byte, 4096)
		b.queues[queue] = ch
	}
	return ch
}

func (b *MemoryBroker) Enqueue(ctx context.Context, queue string, payload []byte) error {
	select {
	case b.channel(queue) <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-b.channel(queue):
		return payload, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MemoryBroker) Close() error { return nil }
