package vlock

// Noop is the Mutex backend for builds without a threading subsystem. Every
// operation succeeds without effect.
type Noop struct{}

// Lock implements Mutex.Lock.
func (Noop) Lock() error { return nil }

// TryLock implements Mutex.TryLock.
func (Noop) TryLock() bool { return true }

// Unlock implements Mutex.Unlock.
func (Noop) Unlock() error { return nil }

// CleanUp implements Mutex.CleanUp.
func (Noop) CleanUp() error { return nil }

// Factory implements Mutex.Factory.
func (Noop) Factory(bool) Mutex { return Noop{} }

// Reset implements Mutex.Reset.
func (Noop) Reset() *State { return &State{} }

// Restore implements Mutex.Restore.
func (Noop) Restore(st *State) { st.consume() }
