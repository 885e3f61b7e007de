package stats

import (
	"testing"
	"time"

	"github.com/mirkobrombin/go-latch/v1/vlock"
)

func TestRecorderCountsAcquisitions(t *testing.T) {
	r := NewRecorder()
	h := r.Hooks()
	h.OnAcquire("m")
	h.OnAcquire("m")
	h.OnContended("m", 3*time.Millisecond)
	h.OnSuspend("m", 2)
	r.Wait()

	s, ok := r.Snapshot("m")
	if !ok {
		t.Fatal("no stats recorded")
	}
	if s.Acquisitions != 2 || s.Contentions != 1 || s.Suspensions != 1 {
		t.Fatalf("stats: %+v", s)
	}
	if s.TotalWait != 3*time.Millisecond {
		t.Fatalf("total wait: %v", s.TotalWait)
	}
	if s.LastAcquired.IsZero() {
		t.Fatal("last acquired not set")
	}
}

func TestSnapshotUnknownKey(t *testing.T) {
	r := NewRecorder()
	if _, ok := r.Snapshot("nope"); ok {
		t.Fatal("unknown key should report no stats")
	}
}

func TestRecorderTracksLiveLock(t *testing.T) {
	r := NewRecorder()
	m := vlock.NewRecursive(true, vlock.WithName("live"), vlock.WithHooks(r.Hooks()))
	_ = m.Lock()
	_ = m.Lock()
	_ = m.Unlock()
	_ = m.Unlock()
	r.Wait()

	s, ok := r.Snapshot("live")
	if !ok {
		t.Fatal("no stats for live lock")
	}
	if s.Acquisitions != 2 {
		t.Fatalf("acquisitions: %d", s.Acquisitions)
	}
}
