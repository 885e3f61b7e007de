// Package signal provides the wakeup bus distributed lock backends use to
// rouse blocked acquirers when a lock is released, instead of polling. A
// notification carries no payload; waiters only need to know the key may be
// free now. Implementations exist for local memory, Redis, NATS and Kafka.
package signal

import (
	"context"
	"sync"
	"sync/atomic"
)

// Bus delivers per-key wakeup signals across processes.
type Bus interface {
	// Notify wakes every listener of key. Delivery is best-effort: a
	// listener whose buffer is full simply retries on its own schedule.
	Notify(ctx context.Context, key string) error
	// Listen registers interest in key and returns the wakeup channel.
	Listen(ctx context.Context, key string) (chan struct{}, error)
	// Forget removes and closes a channel returned by Listen.
	Forget(ctx context.Context, key string, ch chan struct{}) error
}

type memListener struct {
	ch   chan struct{}
	stop chan struct{}
}

// InMemoryBus is a process-local Bus, the default for single-node setups and
// tests.
type InMemoryBus struct {
	mu        sync.Mutex
	listeners map[string][]*memListener
	notified  uint64
	delivered uint64
}

// NewInMemoryBus returns a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{listeners: make(map[string][]*memListener)}
}

// Notify implements Bus.Notify. Sends happen under the mutex so a concurrent
// Forget cannot close a channel mid-delivery; they are non-blocking sends on
// buffered channels, so holding the lock is cheap.
func (b *InMemoryBus) Notify(ctx context.Context, key string) error {
	b.mu.Lock()
	for _, l := range b.listeners[key] {
		select {
		case l.ch <- struct{}{}:
			atomic.AddUint64(&b.delivered, 1)
		default:
		}
	}
	b.mu.Unlock()
	atomic.AddUint64(&b.notified, 1)
	return nil
}

// Listen implements Bus.Listen. The channel is dropped when ctx is cancelled
// or Forget is called, whichever comes first; a non-cancellable ctx spawns no
// watcher at all, so Listen/Forget cycles leave nothing behind.
func (b *InMemoryBus) Listen(ctx context.Context, key string) (chan struct{}, error) {
	l := &memListener{
		ch:   make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[key] = append(b.listeners[key], l)
	b.mu.Unlock()
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = b.Forget(context.Background(), key, l.ch)
			case <-l.stop:
			}
		}()
	}
	return l.ch, nil
}

// Forget implements Bus.Forget.
func (b *InMemoryBus) Forget(ctx context.Context, key string, ch chan struct{}) error {
	b.mu.Lock()
	listeners := b.listeners[key]
	for i, l := range listeners {
		if l.ch == ch {
			listeners[i] = listeners[len(listeners)-1]
			listeners = listeners[:len(listeners)-1]
			b.listeners[key] = listeners
			close(l.stop)
			close(l.ch)
			break
		}
	}
	if len(listeners) == 0 {
		delete(b.listeners, key)
	}
	b.mu.Unlock()
	return nil
}

// Metrics holds bus delivery counters.
type Metrics struct {
	Notified  uint64
	Delivered uint64
}

// Metrics returns a snapshot of the delivery counters.
func (b *InMemoryBus) Metrics() Metrics {
	return Metrics{
		Notified:  atomic.LoadUint64(&b.notified),
		Delivered: atomic.LoadUint64(&b.delivered),
	}
}
