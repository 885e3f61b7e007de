// Package stats keeps approximate per-lock contention statistics in a
// bounded ristretto cache. Entries for cold locks may be evicted under
// memory pressure, so counters are a diagnostic signal, not an audit log.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/mirkobrombin/go-latch/v1/vlock"
)

// Stats is a snapshot of one lock's counters.
type Stats struct {
	Acquisitions uint64
	Contentions  uint64
	Suspensions  uint64
	TotalWait    time.Duration
	LastAcquired time.Time
}

type entry struct {
	acquisitions atomic.Uint64
	contentions  atomic.Uint64
	suspensions  atomic.Uint64
	waitNanos    atomic.Int64
	lastAcquired atomic.Int64 // UnixNano
}

// Recorder accumulates lock statistics keyed by lock name.
type Recorder struct {
	cache *ristretto.Cache
}

// RecorderOption configures the underlying ristretto cache.
type RecorderOption func(*ristretto.Config)

// WithCacheConfig applies a custom ristretto configuration.
func WithCacheConfig(cfg *ristretto.Config) RecorderOption {
	return func(c *ristretto.Config) {
		if cfg == nil {
			return
		}
		*c = *cfg
	}
}

// NewRecorder returns a Recorder with room for a few thousand lock keys.
func NewRecorder(opts ...RecorderOption) *Recorder {
	cfg := &ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 12, // entries are cost 1, so this caps the key count.
		BufferItems: 64,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	c, err := ristretto.NewCache(cfg)
	if err != nil {
		panic(err)
	}
	return &Recorder{cache: c}
}

func (r *Recorder) get(key string) *entry {
	if v, ok := r.cache.Get(key); ok {
		if e, ok := v.(*entry); ok {
			return e
		}
	}
	e := &entry{}
	r.cache.Set(key, e, 1)
	// Ristretto admits asynchronously; read back so concurrent recorders
	// converge on one entry once admission settles.
	if v, ok := r.cache.Get(key); ok {
		if cur, ok := v.(*entry); ok {
			return cur
		}
	}
	return e
}

// Snapshot returns the recorded statistics for key.
func (r *Recorder) Snapshot(key string) (Stats, bool) {
	v, ok := r.cache.Get(key)
	if !ok {
		return Stats{}, false
	}
	e, ok := v.(*entry)
	if !ok {
		return Stats{}, false
	}
	s := Stats{
		Acquisitions: e.acquisitions.Load(),
		Contentions:  e.contentions.Load(),
		Suspensions:  e.suspensions.Load(),
		TotalWait:    time.Duration(e.waitNanos.Load()),
	}
	if ns := e.lastAcquired.Load(); ns != 0 {
		s.LastAcquired = time.Unix(0, ns)
	}
	return s, true
}

// Wait blocks until pending cache writes are visible. Meant for tests.
func (r *Recorder) Wait() {
	r.cache.Wait()
}

// Hooks returns lock hooks that feed this recorder.
func (r *Recorder) Hooks() vlock.Hooks {
	return vlock.Hooks{
		OnAcquire: func(key string) {
			e := r.get(key)
			e.acquisitions.Add(1)
			e.lastAcquired.Store(time.Now().UnixNano())
		},
		OnContended: func(key string, wait time.Duration) {
			e := r.get(key)
			e.contentions.Add(1)
			e.waitNanos.Add(int64(wait))
		},
		OnSuspend: func(key string, _ int) {
			r.get(key).suspensions.Add(1)
		},
	}
}
