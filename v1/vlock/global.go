package vlock

import "sync"

// The process-wide default lock is injected by an external bootstrap (the
// threading subsystem, once it is loaded). This package only reads it.
var (
	globalMu sync.Mutex
	global   Mutex
)

// SetGlobal publishes the process-wide default lock. The first call wins;
// later calls are ignored so the bootstrap cannot be re-run by accident.
func SetGlobal(m Mutex) {
	globalMu.Lock()
	if global == nil {
		global = m
	}
	globalMu.Unlock()
}

// Global returns the process-wide default lock, or nil when no threading
// subsystem published one.
func Global() Mutex {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// resetGlobal exists for tests.
func resetGlobal() {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()
}

// lockGuardLazy guards *m, lazily constructing it from the global lock's
// factory on first use. When a global lock exists, every read and write of *m
// happens under it, so concurrent first users neither double-construct nor
// race on the pointer. With no global lock published, *m stays whatever the
// caller injected (nil means a no-op guard) and the caller is responsible
// for synchronizing that injection.
func lockGuardLazy(m *Mutex) (*Guard, error) {
	if m == nil {
		return &Guard{}, nil
	}
	g := Global()
	if g == nil {
		return NewGuard(*m)
	}
	if err := g.Lock(); err != nil {
		return &Guard{}, err
	}
	if *m == nil {
		*m = g.Factory(true)
	}
	target := *m
	if err := g.Unlock(); err != nil {
		return &Guard{}, err
	}
	return NewGuard(target)
}
