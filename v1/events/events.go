// Package events publishes lock lifecycle events (acquired, released,
// suspended, restored) to in-process watchers and, through the HTTP handlers,
// to external observers. It is an observability surface: delivery is
// best-effort and never blocks a lock operation.
package events

import (
	"context"
	"sync"
	"time"

	uuid "github.com/hashicorp/go-uuid"

	"github.com/mirkobrombin/go-latch/v1/vlock"
)

// Kind labels what happened to a lock.
type Kind string

const (
	KindAcquired  Kind = "acquired"
	KindReleased  Kind = "released"
	KindSuspended Kind = "suspended"
	KindRestored  Kind = "restored"
)

// Event is one lock lifecycle occurrence.
type Event struct {
	ID    string    `json:"id"`
	Key   string    `json:"key"`
	Kind  Kind      `json:"kind"`
	Depth int       `json:"depth,omitempty"`
	Time  time.Time `json:"time"`
}

type watcher struct {
	ch   chan Event
	stop chan struct{}
}

// Stream fans lock events out to watchers. A watcher that falls behind loses
// events rather than stalling the emitter.
type Stream struct {
	mu       sync.Mutex
	watchers map[string][]*watcher
}

// NewStream returns an empty Stream.
func NewStream() *Stream {
	return &Stream{watchers: make(map[string][]*watcher)}
}

// Watch returns a channel of events for key. An empty key watches every lock.
// The watch ends when ctx is cancelled or Unwatch is called; a
// non-cancellable ctx spawns no watcher goroutine.
func (s *Stream) Watch(ctx context.Context, key string) (chan Event, error) {
	w := &watcher{ch: make(chan Event, 16), stop: make(chan struct{})}
	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], w)
	s.mu.Unlock()
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Unwatch(context.Background(), key, w.ch)
			case <-w.stop:
			}
		}()
	}
	return w.ch, nil
}

// Unwatch removes and closes a channel returned by Watch.
func (s *Stream) Unwatch(ctx context.Context, key string, ch chan Event) error {
	s.mu.Lock()
	watchers := s.watchers[key]
	for i, w := range watchers {
		if w.ch == ch {
			watchers[i] = watchers[len(watchers)-1]
			watchers = watchers[:len(watchers)-1]
			s.watchers[key] = watchers
			close(w.stop)
			close(w.ch)
			break
		}
	}
	if len(watchers) == 0 {
		delete(s.watchers, key)
	}
	s.mu.Unlock()
	return nil
}

// Emit delivers ev to watchers of its key and to wildcard watchers. Sends
// happen under the mutex so a concurrent Unwatch cannot close a channel
// mid-delivery; they never block since watcher channels are buffered.
func (s *Stream) Emit(ev Event) {
	if ev.ID == "" {
		if id, err := uuid.GenerateUUID(); err == nil {
			ev.ID = id
		}
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.mu.Lock()
	for _, w := range s.watchers[ev.Key] {
		select {
		case w.ch <- ev:
		default:
		}
	}
	if ev.Key != "" {
		for _, w := range s.watchers[""] {
			select {
			case w.ch <- ev:
			default:
			}
		}
	}
	s.mu.Unlock()
}

// Hooks returns lock hooks that emit events on this stream.
func (s *Stream) Hooks() vlock.Hooks {
	return vlock.Hooks{
		OnAcquire: func(key string) {
			s.Emit(Event{Key: key, Kind: KindAcquired})
		},
		OnRelease: func(key string) {
			s.Emit(Event{Key: key, Kind: KindReleased})
		},
		OnSuspend: func(key string, depth int) {
			s.Emit(Event{Key: key, Kind: KindSuspended, Depth: depth})
		},
		OnRestore: func(key string, depth int) {
			s.Emit(Event{Key: key, Kind: KindRestored, Depth: depth})
		},
	}
}
