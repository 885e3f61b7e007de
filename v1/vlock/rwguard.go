package vlock

import "sync/atomic"

// RWMutex is the external read/write lock capability the conditional helpers
// below delegate to. This package ships no implementation.
type RWMutex interface {
	ReadLock()
	ReadUnlock()
	WriteLock()
	WriteUnlock()
}

var parallel atomic.Bool

// SetParallel toggles the runtime parallel-processing mode the RW helpers are
// gated on. The flag source is normally the surrounding framework, not user
// code.
func SetParallel(on bool) { parallel.Store(on) }

// ParallelEnabled reports whether parallel-processing mode is on.
func ParallelEnabled() bool { return parallel.Load() }

// AcquireRead takes the read lock when parallel mode is enabled; otherwise it
// is a pure pass-through.
func AcquireRead(rw RWMutex) {
	if parallel.Load() && rw != nil {
		rw.ReadLock()
	}
}

// ReleaseRead releases the read lock when parallel mode is enabled.
func ReleaseRead(rw RWMutex) {
	if parallel.Load() && rw != nil {
		rw.ReadUnlock()
	}
}

// AcquireWrite takes the write lock when parallel mode is enabled.
func AcquireWrite(rw RWMutex) {
	if parallel.Load() && rw != nil {
		rw.WriteLock()
	}
}

// ReleaseWrite releases the write lock when parallel mode is enabled.
func ReleaseWrite(rw RWMutex) {
	if parallel.Load() && rw != nil {
		rw.WriteUnlock()
	}
}
