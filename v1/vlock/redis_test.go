package vlock

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	latcherrors "github.com/mirkobrombin/go-latch/v1/errors"
	"github.com/mirkobrombin/go-latch/v1/signal"
)

func newRedisPair(t *testing.T, key string) (*Redis, *Redis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := signal.NewInMemoryBus()
	a := NewRedis(client, bus, key)
	b := NewRedis(client, bus, key)
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return a, b, cleanup
}

func TestRedisTryLockExcludesOtherInstance(t *testing.T) {
	a, b, cleanup := newRedisPair(t, "res")
	defer cleanup()

	if !a.TryLock() {
		t.Fatal("trylock on free lock")
	}
	if b.TryLock() {
		t.Fatal("second instance must not acquire a held lock")
	}
	if err := a.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !b.TryLock() {
		t.Fatal("released lock should be acquirable")
	}
	_ = b.Unlock()
}

func TestRedisReentrantDepth(t *testing.T) {
	a, b, cleanup := newRedisPair(t, "res")
	defer cleanup()

	if err := a.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := a.Lock(); err != nil {
		t.Fatalf("reentrant lock: %v", err)
	}
	if got := a.Depth(); got != 2 {
		t.Fatalf("depth: %d", got)
	}
	if err := a.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if b.TryLock() {
		t.Fatal("lock still held one level deep")
	}
	if err := a.Unlock(); err != nil {
		t.Fatalf("final unlock: %v", err)
	}
	if !b.TryLock() {
		t.Fatal("fully released lock should be acquirable")
	}
	_ = b.Unlock()
}

func TestRedisLockBlocksUntilRelease(t *testing.T) {
	a, b, cleanup := newRedisPair(t, "res")
	defer cleanup()

	if err := a.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	acquired := make(chan error, 1)
	go func() { acquired <- b.Lock() }()
	select {
	case <-acquired:
		t.Fatal("lock acquired while held elsewhere")
	case <-time.After(30 * time.Millisecond):
	}
	if err := a.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("blocked lock: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked acquirer never woke up")
	}
	_ = b.Unlock()
}

func TestRedisSuspendHandsOverAndRestores(t *testing.T) {
	a, b, cleanup := newRedisPair(t, "res")
	defer cleanup()

	_ = a.Lock()
	_ = a.Lock()

	s := NewSuspend(a)
	if a.Depth() != 0 {
		t.Fatalf("depth during suspend: %d", a.Depth())
	}
	if !b.TryLock() {
		t.Fatal("suspended lock should be acquirable by the other instance")
	}

	restored := make(chan struct{})
	go func() {
		s.Restore()
		close(restored)
	}()
	select {
	case <-restored:
		t.Fatal("restore returned while other instance held the lock")
	case <-time.After(30 * time.Millisecond):
	}
	if err := b.Unlock(); err != nil {
		t.Fatalf("handover unlock: %v", err)
	}
	select {
	case <-restored:
	case <-time.After(2 * time.Second):
		t.Fatal("restore never completed")
	}
	if got := a.Depth(); got != 2 {
		t.Fatalf("depth after restore: %d want 2", got)
	}
	if b.TryLock() {
		t.Fatal("restored lock should exclude the other instance")
	}
	_ = a.Unlock()
	_ = a.Unlock()
}

func TestRedisRestoreStacksOnInterimHold(t *testing.T) {
	a, b, cleanup := newRedisPair(t, "res")
	defer cleanup()

	_ = a.Lock()
	st := a.Reset()
	if a.Depth() != 0 {
		t.Fatalf("depth after reset: %d", a.Depth())
	}

	// Reacquire between Reset and Restore, like a nested scope would.
	if !a.TryLock() {
		t.Fatal("reset lock should be acquirable by its own instance")
	}
	a.Restore(st)
	if got := a.Depth(); got != 2 {
		t.Fatalf("depth after restore over interim hold: %d want 2", got)
	}

	if err := a.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if b.TryLock() {
		t.Fatal("lock still held one level deep")
	}
	if err := a.Unlock(); err != nil {
		t.Fatalf("final unlock: %v", err)
	}
	if !b.TryLock() {
		t.Fatal("fully released lock should be acquirable")
	}
	_ = b.Unlock()
}

func TestRedisUnlockWithoutHoldFails(t *testing.T) {
	a, _, cleanup := newRedisPair(t, "res")
	defer cleanup()

	if err := a.Unlock(); !errors.Is(err, latcherrors.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestRedisCleanUpIsIdempotent(t *testing.T) {
	a, b, cleanup := newRedisPair(t, "res")
	defer cleanup()

	_ = a.Lock()
	_ = a.Lock()
	if err := a.CleanUp(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if err := a.CleanUp(); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if !b.TryLock() {
		t.Fatal("cleaned lock should be free")
	}
	_ = b.Unlock()
}

func TestRedisTTLFreesCrashedHolder(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	bus := signal.NewInMemoryBus()

	a := NewRedis(client, bus, "res", WithTTL(50*time.Millisecond))
	b := NewRedis(client, bus, "res", WithTTL(50*time.Millisecond))
	if !a.TryLock() {
		t.Fatal("trylock: lock should be free")
	}
	if b.TryLock() {
		t.Fatal("lock held, ttl not yet expired")
	}
	mr.FastForward(100 * time.Millisecond)
	if !b.TryLock() {
		t.Fatal("expired lock should be acquirable")
	}
	_ = b.Unlock()
}

func TestRedisFactoryMakesCompanionWithOwnKey(t *testing.T) {
	a, _, cleanup := newRedisPair(t, "res")
	defer cleanup()

	c, ok := a.Factory(true).(*Redis)
	if !ok {
		t.Fatalf("factory kind: %T", a.Factory(true))
	}
	if c.key == a.key {
		t.Fatal("companion lock must guard its own key")
	}
	_ = a.Lock()
	if !c.TryLock() {
		t.Fatal("companion lock should be independent")
	}
	_ = c.Unlock()
	_ = a.Unlock()
}
