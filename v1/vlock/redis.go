package vlock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	latcherrors "github.com/mirkobrombin/go-latch/v1/errors"
	"github.com/mirkobrombin/go-latch/v1/signal"
)

var acquireScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
    if ARGV[2] ~= "0" then
        redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
    else
        redis.call("SET", KEYS[1], ARGV[1])
    end
    return 1
elseif v == ARGV[1] then
    return 1
else
    return 0
end
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// retryInterval bounds how long a blocked acquirer waits for a wakeup signal
// before rechecking Redis directly. Signals are best-effort, so the fallback
// keeps a missed notification from stalling a waiter forever.
const retryInterval = 100 * time.Millisecond

// Redis is a distributed Mutex backend. The lock lives in a Redis key holding
// an owner token unique to this Mutex instance; the instance is the ownership
// unit, so reentrancy means nested acquisitions through the same instance.
// Hold depth is kept locally since only the owning instance can reenter.
// Blocked acquirers wait on a signal.Bus wakeup published on release.
type Redis struct {
	client    *redis.Client
	bus       signal.Bus
	key       string
	token     string
	ttl       time.Duration
	recursive bool
	hooks     Hooks
	ctx       context.Context

	mu    sync.Mutex
	depth int
}

// RedisOption configures a Redis mutex.
type RedisOption func(*Redis)

// WithTTL sets an expiry on the lock key so a crashed holder cannot wedge the
// lock forever. Zero means no expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithRedisHooks attaches observation hooks.
func WithRedisHooks(h Hooks) RedisOption {
	return func(r *Redis) { r.hooks = h }
}

// WithBaseContext sets the context used for Redis commands and bus waits.
// Defaults to context.Background since Lock has no cancellation of its own.
func WithBaseContext(ctx context.Context) RedisOption {
	return func(r *Redis) { r.ctx = ctx }
}

// NewRedis returns a distributed reentrant mutex for key. A nil bus falls
// back to a process-local one, which still wakes waiters in the same process.
func NewRedis(client *redis.Client, bus signal.Bus, key string, opts ...RedisOption) *Redis {
	if bus == nil {
		bus = signal.NewInMemoryBus()
	}
	r := &Redis{
		client:    client,
		bus:       bus,
		key:       key,
		token:     uuid.NewString(),
		recursive: true,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) ttlArg() string {
	if r.ttl <= 0 {
		return "0"
	}
	ms := r.ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}

// tryAcquire runs the atomic acquire-or-reenter script.
func (r *Redis) tryAcquire() (bool, error) {
	res, err := acquireScript.Run(r.ctx, r.client, []string{r.key}, r.token, r.ttlArg()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Lock implements Mutex.Lock.
func (r *Redis) Lock() error {
	r.mu.Lock()
	if r.depth > 0 && r.recursive {
		r.depth++
		r.mu.Unlock()
		r.hooks.acquire(r.key)
		return nil
	}
	r.mu.Unlock()

	start := time.Now()
	contended := false
	for {
		ok, err := r.tryAcquire()
		if err != nil {
			return err
		}
		if ok {
			r.mu.Lock()
			r.depth++
			r.mu.Unlock()
			if contended {
				r.hooks.contended(r.key, time.Since(start))
			}
			r.hooks.acquire(r.key)
			return nil
		}
		contended = true
		ch, err := r.bus.Listen(r.ctx, r.key)
		if err != nil {
			return err
		}
		select {
		case <-ch:
		case <-time.After(retryInterval):
		}
		_ = r.bus.Forget(context.Background(), r.key, ch)
	}
}

// TryLock implements Mutex.TryLock. Backend errors count as failure.
func (r *Redis) TryLock() bool {
	r.mu.Lock()
	if r.depth > 0 {
		if !r.recursive {
			r.mu.Unlock()
			return false
		}
		r.depth++
		r.mu.Unlock()
		r.hooks.acquire(r.key)
		return true
	}
	r.mu.Unlock()
	ok, err := r.tryAcquire()
	if err != nil || !ok {
		return false
	}
	r.mu.Lock()
	r.depth++
	r.mu.Unlock()
	r.hooks.acquire(r.key)
	return true
}

// Unlock implements Mutex.Unlock.
func (r *Redis) Unlock() error {
	r.mu.Lock()
	if r.depth == 0 {
		r.mu.Unlock()
		return latcherrors.ErrNotOwner
	}
	r.depth--
	last := r.depth == 0
	r.mu.Unlock()
	if last {
		if err := r.drop(); err != nil {
			return err
		}
	}
	r.hooks.release(r.key)
	return nil
}

// drop deletes the lock key if this instance still owns it and wakes waiters.
func (r *Redis) drop() error {
	_, err := releaseScript.Run(r.ctx, r.client, []string{r.key}, r.token).Result()
	if err == redis.Nil {
		err = nil
	}
	if err != nil {
		return err
	}
	return r.bus.Notify(r.ctx, r.key)
}

// CleanUp implements Mutex.CleanUp. It drops this instance's entire hold in
// one step and is a no-op when nothing is held.
func (r *Redis) CleanUp() error {
	r.mu.Lock()
	held := r.depth > 0
	r.depth = 0
	r.mu.Unlock()
	if !held {
		return nil
	}
	if err := r.drop(); err != nil {
		return err
	}
	r.hooks.release(r.key)
	return nil
}

// Factory implements Mutex.Factory. The companion lock gets a fresh key
// derived from this one, same client, bus, TTL and hooks.
func (r *Redis) Factory(recursive bool) Mutex {
	companion := NewRedis(r.client, r.bus, r.key+":"+uuid.NewString(),
		WithTTL(r.ttl), WithRedisHooks(r.hooks), WithBaseContext(r.ctx))
	companion.recursive = recursive
	return companion
}

// Reset implements Mutex.Reset. The local depth goes into the snapshot and
// the Redis key is deleted, so other instances can acquire while suspended.
func (r *Redis) Reset() *State {
	r.mu.Lock()
	d := r.depth
	r.depth = 0
	r.mu.Unlock()
	if d > 0 {
		_ = r.drop()
		r.hooks.suspend(r.key, d)
	}
	return &State{depth: d}
}

// Restore implements Mutex.Restore. It contends for the lock like a fresh
// Lock call, then adds the captured depth on top of any holds this instance
// reacquired in the meantime, so an interim Lock between Reset and Restore
// still needs its own Unlock. Other instances' activity while suspended is
// invisible to the caller beyond the wait it may cause.
func (r *Redis) Restore(st *State) {
	d, _ := st.consume()
	if d == 0 {
		return
	}
	for {
		ok, err := r.tryAcquire()
		if err == nil && ok {
			break
		}
		ch, lerr := r.bus.Listen(r.ctx, r.key)
		if lerr != nil {
			time.Sleep(retryInterval)
			continue
		}
		select {
		case <-ch:
		case <-time.After(retryInterval):
		}
		_ = r.bus.Forget(context.Background(), r.key, ch)
	}
	r.mu.Lock()
	r.depth += d
	r.mu.Unlock()
	r.hooks.restore(r.key, d)
}

// Depth reports the current local hold depth. Meant for tests and
// introspection.
func (r *Redis) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.depth
}
