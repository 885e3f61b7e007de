//go:build latch_nothreads

package vlock

// ThreadsEnabled reports whether this build carries threading support.
const ThreadsEnabled = false

// LockGuard is a no-op in builds without threading support. Guard methods
// accept a nil receiver, so callers pay nothing.
func LockGuard(Mutex) *Guard { return nil }

// LockGuardLazy is a no-op in builds without threading support.
func LockGuardLazy(*Mutex) *Guard { return nil }

// SuspendGuard is a no-op in builds without threading support.
func SuspendGuard(Mutex) *Suspend { return nil }
