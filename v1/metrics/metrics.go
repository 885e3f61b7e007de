package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mirkobrombin/go-latch/v1/vlock"
)

var (
	// AcquireCounter tracks successful lock acquisitions, reentrant ones
	// included.
	AcquireCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_acquire_total",
		Help: "Total number of lock acquisitions",
	})
	// ReleaseCounter tracks lock releases.
	ReleaseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_release_total",
		Help: "Total number of lock releases",
	})
	// ContendedCounter tracks acquisitions that had to wait.
	ContendedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_contended_total",
		Help: "Total number of contended lock acquisitions",
	})
	// SuspendCounter tracks full releases performed by suspend guards.
	SuspendCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_suspend_total",
		Help: "Total number of lock suspensions",
	})
	// RestoreCounter tracks hold restorations after a suspension.
	RestoreCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "latch_restore_total",
		Help: "Total number of lock restorations",
	})
	// HeldGauge reports the number of holds currently outstanding.
	HeldGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "latch_held",
		Help: "Current number of outstanding lock holds",
	})
	// WaitHistogram observes time spent waiting on contended acquisitions.
	WaitHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "latch_wait_seconds",
		Help:    "Time spent waiting for contended lock acquisitions",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterLockMetrics registers latch lock metrics on the provided registry.
func RegisterLockMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AcquireCounter, ReleaseCounter, ContendedCounter,
		SuspendCounter, RestoreCounter, HeldGauge, WaitHistogram)
}

// Hooks returns lock hooks that feed the metrics above.
func Hooks() vlock.Hooks {
	return vlock.Hooks{
		OnAcquire: func(string) {
			AcquireCounter.Inc()
			HeldGauge.Inc()
		},
		OnRelease: func(string) {
			ReleaseCounter.Inc()
			HeldGauge.Dec()
		},
		OnContended: func(_ string, wait time.Duration) {
			ContendedCounter.Inc()
			WaitHistogram.Observe(wait.Seconds())
		},
		OnSuspend: func(_ string, depth int) {
			SuspendCounter.Inc()
			HeldGauge.Sub(float64(depth))
		},
		OnRestore: func(_ string, depth int) {
			RestoreCounter.Inc()
			HeldGauge.Add(float64(depth))
		},
	}
}
