// Package tracing emits OpenTelemetry spans for contended lock acquisitions
// and suspend/restore cycles, so lock waits show up next to the application's
// own traces.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirkobrombin/go-latch/v1/vlock"
)

const tracerName = "github.com/mirkobrombin/go-latch/v1/tracing"

// Hooks returns lock hooks that record spans on the global tracer provider.
// Only contended acquisitions and suspensions produce spans; the uncontended
// fast path stays unobserved to keep it cheap.
func Hooks() vlock.Hooks {
	tracer := otel.Tracer(tracerName)
	return vlock.Hooks{
		OnContended: func(key string, wait time.Duration) {
			end := time.Now()
			_, span := tracer.Start(context.Background(), "vlock.acquire",
				trace.WithTimestamp(end.Add(-wait)),
				trace.WithAttributes(
					attribute.String("lock.key", key),
					attribute.Int64("lock.wait_us", wait.Microseconds()),
				))
			span.End(trace.WithTimestamp(end))
		},
		OnSuspend: func(key string, depth int) {
			_, span := tracer.Start(context.Background(), "vlock.suspend",
				trace.WithAttributes(
					attribute.String("lock.key", key),
					attribute.Int("lock.depth", depth),
				))
			span.End()
		},
		OnRestore: func(key string, depth int) {
			_, span := tracer.Start(context.Background(), "vlock.restore",
				trace.WithAttributes(
					attribute.String("lock.key", key),
					attribute.Int("lock.depth", depth),
				))
			span.End()
		},
	}
}
