//go:build !latch_nothreads

package vlock

// ThreadsEnabled reports whether this build carries threading support. It is
// a compile-time constant so the helper calls below vanish entirely from
// single-threaded builds (tag latch_nothreads) instead of branching at
// runtime.
const ThreadsEnabled = true

// LockGuard locks m and returns the guard, ignoring the acquisition status.
// It is the convenience form for scopes that do not inspect lock errors:
//
//	defer vlock.LockGuard(m).Unlock()
func LockGuard(m Mutex) *Guard {
	g, _ := NewGuard(m)
	return g
}

// LockGuardLazy guards *m, constructing it from the global lock's factory on
// first use. See Global.
func LockGuardLazy(m *Mutex) *Guard {
	g, _ := lockGuardLazy(m)
	return g
}

// SuspendGuard suspends m and returns the guard:
//
//	defer vlock.SuspendGuard(m).Restore()
func SuspendGuard(m Mutex) *Suspend {
	return NewSuspend(m)
}
