package signal

import (
	"context"
	"sync"

	nats "github.com/nats-io/nats.go"
)

type natsListener struct {
	sub   *nats.Subscription
	chans []chan struct{}
}

// NATSBus implements Bus using a NATS connection.
type NATSBus struct {
	conn *nats.Conn

	mu        sync.Mutex
	listeners map[string]*natsListener
}

// NewNATSBus returns a new NATSBus using the provided connection.
func NewNATSBus(conn *nats.Conn) *NATSBus {
	return &NATSBus{conn: conn, listeners: make(map[string]*natsListener)}
}

func subjectName(key string) string { return "latch.wake." + key }

// Notify implements Bus.Notify.
func (b *NATSBus) Notify(ctx context.Context, key string) error {
	return b.conn.Publish(subjectName(key), []byte("1"))
}

// Listen implements Bus.Listen.
func (b *NATSBus) Listen(ctx context.Context, key string) (chan struct{}, error) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	l := b.listeners[key]
	if l == nil {
		sub, err := b.conn.Subscribe(subjectName(key), func(_ *nats.Msg) {
			// Fan out under the mutex so Forget cannot close a
			// channel between snapshot and send.
			b.mu.Lock()
			if cur := b.listeners[key]; cur != nil {
				for _, c := range cur.chans {
					select {
					case c <- struct{}{}:
					default:
					}
				}
			}
			b.mu.Unlock()
		})
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		l = &natsListener{sub: sub}
		b.listeners[key] = l
	}
	l.chans = append(l.chans, ch)
	b.mu.Unlock()
	return ch, nil
}

// Forget implements Bus.Forget.
func (b *NATSBus) Forget(ctx context.Context, key string, ch chan struct{}) error {
	b.mu.Lock()
	l := b.listeners[key]
	if l == nil {
		b.mu.Unlock()
		return nil
	}
	for i, c := range l.chans {
		if c == ch {
			l.chans[i] = l.chans[len(l.chans)-1]
			l.chans = l.chans[:len(l.chans)-1]
			close(c)
			break
		}
	}
	var sub *nats.Subscription
	if len(l.chans) == 0 {
		sub = l.sub
		delete(b.listeners, key)
	}
	b.mu.Unlock()
	if sub != nil {
		return sub.Unsubscribe()
	}
	return nil
}
