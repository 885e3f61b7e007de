package signal

import (
	"context"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

type redisListener struct {
	pubsub *redis.PubSub
	chans  []chan struct{}
}

// RedisBus implements Bus on Redis pub/sub. One PubSub subscription is shared
// per key and fanned out to local listeners.
type RedisBus struct {
	client *redis.Client

	mu        sync.Mutex
	listeners map[string]*redisListener
}

// NewRedisBus returns a new RedisBus using the provided client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, listeners: make(map[string]*redisListener)}
}

func channelName(key string) string { return "latch:wake:" + key }

// Notify implements Bus.Notify.
func (b *RedisBus) Notify(ctx context.Context, key string) error {
	return b.client.Publish(ctx, channelName(key), "1").Err()
}

// Listen implements Bus.Listen.
func (b *RedisBus) Listen(ctx context.Context, key string) (chan struct{}, error) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	l := b.listeners[key]
	if l == nil {
		pubsub := b.client.Subscribe(context.Background(), channelName(key))
		if _, err := pubsub.Receive(ctx); err != nil {
			b.mu.Unlock()
			_ = pubsub.Close()
			return nil, err
		}
		l = &redisListener{pubsub: pubsub}
		b.listeners[key] = l
		go func() {
			for range pubsub.Channel() {
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
			}
		}()
	}
	l.chans = append(l.chans, ch)
	b.mu.Unlock()
	return ch, nil
}

// Forget implements Bus.Forget. The Redis subscription is closed once the
// last local listener of a key is gone.
func (b *RedisBus) Forget(ctx context.Context, key string, ch chan struct{}) error {
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
	var pubsub *redis.PubSub
	if len(l.chans) == 0 {
		pubsub = l.pubsub
		delete(b.listeners, key)
	}
	b.mu.Unlock()
	if pubsub != nil {
		return pubsub.Close()
	}
	return nil
}
