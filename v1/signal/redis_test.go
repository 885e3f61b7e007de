package signal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func newRedisBus(t *testing.T) (*RedisBus, context.Context) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return NewRedisBus(client), context.Background()
}

func TestRedisBusNotifyReachesListener(t *testing.T) {
	bus, ctx := newRedisBus(t)
	ch, err := bus.Listen(ctx, "key")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := bus.Notify(ctx, "key"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("wakeup not delivered")
	}
}

func TestRedisBusSharesSubscriptionPerKey(t *testing.T) {
	bus, ctx := newRedisBus(t)
	ch1, err := bus.Listen(ctx, "key")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ch2, err := bus.Listen(ctx, "key")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := bus.Notify(ctx, "key"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	for i, ch := range []chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("listener %d missed the wakeup", i)
		}
	}
}

func TestRedisBusForgetLastListenerClosesSubscription(t *testing.T) {
	bus, ctx := newRedisBus(t)
	ch, err := bus.Listen(ctx, "key")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := bus.Forget(ctx, "key", ch); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("forgotten channel should be closed")
	}
	bus.mu.Lock()
	_, still := bus.listeners["key"]
	bus.mu.Unlock()
	if still {
		t.Fatal("listener state should be gone")
	}
}
