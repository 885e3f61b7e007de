package vlock

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"time"

	latcherrors "github.com/mirkobrombin/go-latch/v1/errors"
)

// Recursive is an in-process Mutex backend. Ownership is tracked per
// goroutine, so the owning goroutine may acquire again and the hold depth
// counts unmatched Lock calls. Created with recursive=false it behaves like a
// plain mutex: a second Lock from any goroutine, the owner included, blocks
// until the lock is released.
type Recursive struct {
	name      string
	hooks     Hooks
	recursive bool

	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	depth int
}

// RecursiveOption configures a Recursive mutex.
type RecursiveOption func(*Recursive)

// WithName sets the key reported to hooks. Unnamed locks report "".
func WithName(name string) RecursiveOption {
	return func(r *Recursive) { r.name = name }
}

// WithHooks attaches observation hooks.
func WithHooks(h Hooks) RecursiveOption {
	return func(r *Recursive) { r.hooks = h }
}

// NewRecursive returns a new in-process mutex. With recursive=true the owning
// goroutine may nest Lock calls.
func NewRecursive(recursive bool, opts ...RecursiveOption) *Recursive {
	r := &Recursive{recursive: recursive}
	r.cond = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// gid returns the current goroutine id, parsed from the runtime.Stack header
// line ("goroutine N [running]:"). This is the usual technique for reentrant
// locks in Go, which exposes no goroutine identity directly.
func gid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// Lock implements Mutex.Lock.
func (r *Recursive) Lock() error {
	g := gid()
	r.mu.Lock()
	if r.recursive && r.owner == g {
		r.depth++
		r.mu.Unlock()
		r.hooks.acquire(r.name)
		return nil
	}
	var start time.Time
	contended := r.owner != 0
	if contended {
		start = time.Now()
	}
	for r.owner != 0 {
		r.cond.Wait()
	}
	r.owner = g
	r.depth = 1
	r.mu.Unlock()
	if contended {
		r.hooks.contended(r.name, time.Since(start))
	}
	r.hooks.acquire(r.name)
	return nil
}

// TryLock implements Mutex.TryLock.
func (r *Recursive) TryLock() bool {
	g := gid()
	r.mu.Lock()
	switch {
	case r.owner == 0:
		r.owner = g
		r.depth = 1
	case r.recursive && r.owner == g:
		r.depth++
	default:
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()
	r.hooks.acquire(r.name)
	return true
}

// Unlock implements Mutex.Unlock. Unlocking from a goroutine that does not
// own the lock returns ErrNotOwner and leaves the lock untouched.
func (r *Recursive) Unlock() error {
	g := gid()
	r.mu.Lock()
	if r.owner != g {
		r.mu.Unlock()
		return latcherrors.ErrNotOwner
	}
	r.depth--
	if r.depth == 0 {
		r.owner = 0
		r.cond.Signal()
	}
	r.mu.Unlock()
	r.hooks.release(r.name)
	return nil
}

// CleanUp implements Mutex.CleanUp. It drops the calling goroutine's entire
// hold, whatever the depth, and is a no-op when the caller holds nothing.
func (r *Recursive) CleanUp() error {
	g := gid()
	r.mu.Lock()
	if r.owner != g {
		r.mu.Unlock()
		return nil
	}
	r.owner = 0
	r.depth = 0
	r.cond.Broadcast()
	r.mu.Unlock()
	r.hooks.release(r.name)
	return nil
}

// Factory implements Mutex.Factory.
func (r *Recursive) Factory(recursive bool) Mutex {
	return NewRecursive(recursive, WithHooks(r.hooks))
}

// Reset implements Mutex.Reset. Only the calling goroutine's hold is
// captured: if another goroutine owns the lock, the lock is left untouched
// and the snapshot represents "unheld".
func (r *Recursive) Reset() *State {
	g := gid()
	r.mu.Lock()
	if r.owner != g {
		r.mu.Unlock()
		return &State{}
	}
	d := r.depth
	r.owner = 0
	r.depth = 0
	r.cond.Broadcast()
	r.mu.Unlock()
	r.hooks.suspend(r.name, d)
	return &State{depth: d}
}

// Restore implements Mutex.Restore. It blocks until the lock is free (or
// already owned by the caller), then reinstates the captured depth on top of
// any depth the caller accumulated in the meantime.
func (r *Recursive) Restore(st *State) {
	d, _ := st.consume()
	if d == 0 {
		return
	}
	g := gid()
	r.mu.Lock()
	if r.owner != g {
		for r.owner != 0 {
			r.cond.Wait()
		}
		r.owner = g
	}
	r.depth += d
	r.mu.Unlock()
	r.hooks.restore(r.name, d)
}

// Depth reports the current hold depth. Meant for tests and introspection.
func (r *Recursive) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.depth
}
