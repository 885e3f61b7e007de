// Package registry maps names to lock instances so independent callers
// asking for the same name always share one Mutex. Construction is lazy and
// guarded against concurrent double-construction, the hazard a process-wide
// bootstrap lock otherwise has to solve by hand.
package registry

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mirkobrombin/go-latch/v1/vlock"
)

// Factory constructs the Mutex for a name on first use.
type Factory func(name string) (vlock.Mutex, error)

// Registry hands out named locks, constructing each at most once.
type Registry struct {
	factory Factory
	group   singleflight.Group
	locks   sync.Map // name -> vlock.Mutex
}

// New returns a Registry backed by factory.
func New(factory Factory) *Registry {
	return &Registry{factory: factory}
}

// For returns the Mutex for name, constructing it on first use. Concurrent
// first users share a single construction; every caller gets the same
// instance.
func (r *Registry) For(name string) (vlock.Mutex, error) {
	if v, ok := r.locks.Load(name); ok {
		return v.(vlock.Mutex), nil
	}
	v, err, _ := r.group.Do(name, func() (any, error) {
		if v, ok := r.locks.Load(name); ok {
			return v, nil
		}
		m, err := r.factory(name)
		if err != nil {
			return nil, err
		}
		r.locks.Store(name, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(vlock.Mutex), nil
}

// Guard locks the named lock and returns the guard.
func (r *Registry) Guard(name string) (*vlock.Guard, error) {
	m, err := r.For(name)
	if err != nil {
		return nil, err
	}
	return vlock.NewGuard(m)
}
