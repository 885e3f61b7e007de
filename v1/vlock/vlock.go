package vlock

import "time"

// Mutex is an exclusive, possibly reentrant lock capability. Implementations
// decide where the lock lives (process memory, Redis, nowhere); callers hold
// a Mutex by reference and never copy it.
type Mutex interface {
	// Lock blocks until exclusive ownership is acquired. Backends that
	// support reentrancy increment the hold depth when the owner acquires
	// again. Backend failures (for example a lost connection on a
	// distributed lock) are returned as-is.
	Lock() error
	// TryLock attempts acquisition without blocking and reports success.
	TryLock() bool
	// Unlock releases one level of hold. It must be called by the owner,
	// once per matching Lock.
	Unlock() error
	// CleanUp force-releases whatever hold the caller has, regardless of
	// depth. It is idempotent and intended for error recovery paths.
	CleanUp() error
	// Factory constructs a companion Mutex of the same backend kind.
	Factory(recursive bool) Mutex
	// Reset fully releases the lock regardless of its current recursive
	// hold depth and returns a snapshot of that hold. Resetting an unheld
	// lock returns a snapshot representing "unheld".
	Reset() *State
	// Restore consumes a snapshot previously produced by Reset on this
	// same Mutex and reacquires the lock to the exact depth it captured.
	// It blocks until the prior hold is reestablished.
	Restore(st *State)
}

// State is an opaque snapshot of a Mutex hold, produced by Reset and consumed
// exactly once by Restore on the same Mutex. It carries the recursion depth
// plus whatever backend state is needed to reinstate it.
type State struct {
	depth   int
	payload any
}

// consume takes the snapshot contents out of st, leaving it empty so a second
// Restore sees an unheld snapshot.
func (st *State) consume() (int, any) {
	if st == nil {
		return 0, nil
	}
	d, p := st.depth, st.payload
	st.depth, st.payload = 0, nil
	return d, p
}

// Hooks carries optional observation callbacks invoked by backends. Nil
// fields are skipped. Hooks must not call back into the Mutex that fired
// them.
type Hooks struct {
	// OnAcquire fires after every successful Lock or TryLock, including
	// reentrant ones.
	OnAcquire func(key string)
	// OnRelease fires after every Unlock that completed without error.
	OnRelease func(key string)
	// OnContended fires when a Lock call had to wait, with the time spent
	// waiting.
	OnContended func(key string, wait time.Duration)
	// OnSuspend fires when Reset released a held lock, with the captured
	// depth.
	OnSuspend func(key string, depth int)
	// OnRestore fires when Restore reestablished a hold, with the restored
	// depth.
	OnRestore func(key string, depth int)
}

func (h Hooks) acquire(key string) {
	if h.OnAcquire != nil {
		h.OnAcquire(key)
	}
}

func (h Hooks) release(key string) {
	if h.OnRelease != nil {
		h.OnRelease(key)
	}
}

func (h Hooks) contended(key string, wait time.Duration) {
	if h.OnContended != nil {
		h.OnContended(key, wait)
	}
}

func (h Hooks) suspend(key string, depth int) {
	if h.OnSuspend != nil {
		h.OnSuspend(key, depth)
	}
}

func (h Hooks) restore(key string, depth int) {
	if h.OnRestore != nil {
		h.OnRestore(key, depth)
	}
}

// JoinHooks combines several Hooks; every non-nil callback fires in order.
func JoinHooks(hooks ...Hooks) Hooks {
	var out Hooks
	for _, h := range hooks {
		h := h
		if h.OnAcquire != nil {
			prev := out.OnAcquire
			out.OnAcquire = func(key string) {
				if prev != nil {
					prev(key)
				}
				h.OnAcquire(key)
			}
		}
		if h.OnRelease != nil {
			prev := out.OnRelease
			out.OnRelease = func(key string) {
				if prev != nil {
					prev(key)
				}
				h.OnRelease(key)
			}
		}
		if h.OnContended != nil {
			prev := out.OnContended
			out.OnContended = func(key string, wait time.Duration) {
				if prev != nil {
					prev(key, wait)
				}
				h.OnContended(key, wait)
			}
		}
		if h.OnSuspend != nil {
			prev := out.OnSuspend
			out.OnSuspend = func(key string, depth int) {
				if prev != nil {
					prev(key, depth)
				}
				h.OnSuspend(key, depth)
			}
		}
		if h.OnRestore != nil {
			prev := out.OnRestore
			out.OnRestore = func(key string, depth int) {
				if prev != nil {
					prev(key, depth)
				}
				h.OnRestore(key, depth)
			}
		}
	}
	return out
}
