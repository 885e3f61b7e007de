package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterLockMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterLockMetrics(reg)
	AcquireCounter.Inc()
	ReleaseCounter.Inc()
	ContendedCounter.Inc()
	SuspendCounter.Inc()
	RestoreCounter.Inc()
	HeldGauge.Set(2)
	WaitHistogram.Observe(0.001)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) < 7 {
		t.Fatalf("expected metrics registered, got %d families", len(mfs))
	}
}

func TestRegisterLockMetricsDuplicatePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterLockMetrics(reg)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterLockMetrics(reg)
}

func TestHooksBalanceHeldGauge(t *testing.T) {
	h := Hooks()
	HeldGauge.Set(0)
	h.OnAcquire("k")
	h.OnAcquire("k")
	h.OnSuspend("k", 2)
	h.OnRestore("k", 2)
	h.OnRelease("k")
	h.OnRelease("k")
	h.OnContended("k", time.Millisecond)
	if got := testGaugeValue(t); got != 0 {
		t.Fatalf("held gauge: %v want 0", got)
	}
}

func testGaugeValue(t *testing.T) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := reg.Register(HeldGauge); err != nil {
		t.Fatalf("register: %v", err)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "latch_held" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("gauge not found")
	return 0
}
