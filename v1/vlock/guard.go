package vlock

// Guard locks a Mutex on construction and guarantees it is released exactly
// once. Use it with defer so release happens on every exit path:
//
//	g, err := vlock.NewGuard(m)
//	if err != nil {
//	    return err
//	}
//	defer g.Unlock()
//
// A Guard built around a nil Mutex performs no lock operations. Guards must
// not be copied; one guard is one release obligation.
type Guard struct {
	m Mutex
}

// NewGuard locks m (blocking) and returns a guard holding it. If m is nil the
// guard is a no-op. If Lock fails the error is returned and the guard holds
// nothing, so a deferred Unlock stays safe.
func NewGuard(m Mutex) (*Guard, error) {
	g := &Guard{m: m}
	if m != nil {
		if err := m.Lock(); err != nil {
			g.m = nil
			return g, err
		}
	}
	return g, nil
}

// Unlock releases the held lock exactly once and clears the guard. Calling it
// again, or on a guard that holds nothing, returns nil.
func (g *Guard) Unlock() error {
	if g == nil || g.m == nil {
		return nil
	}
	m := g.m
	g.m = nil
	return m.Unlock()
}

// Suspend fully releases a Mutex for the duration of a scope, capturing its
// hold depth so Restore can reestablish it:
//
//	s := vlock.NewSuspend(m)
//	defer s.Restore()
//	// m is completely unlocked here, whatever its prior depth
//
// The captured snapshot is consumed by the first Restore; later calls no-op.
// Suspend must not be copied.
type Suspend struct {
	m  Mutex
	st *State
}

// NewSuspend resets m, releasing it entirely, and stores the resulting
// snapshot. A nil m yields a no-op guard.
func NewSuspend(m Mutex) *Suspend {
	s := &Suspend{m: m}
	if m != nil {
		s.st = m.Reset()
	}
	return s
}

// Restore reacquires the suspended lock to its captured depth. Only the first
// call has any effect.
func (s *Suspend) Restore() {
	if s == nil || s.m == nil {
		return
	}
	m, st := s.m, s.st
	s.m, s.st = nil, nil
	m.Restore(st)
}
