// Package vlock defines a pluggable mutual-exclusion abstraction. Callers
// program against the Mutex interface while the concrete backend (in-process
// recursive mutex, Redis-backed distributed mutex, or a no-op stub) is
// injected at runtime. On top of the interface the package provides two
// stack-discipline wrappers: Guard, which acquires a lock and guarantees a
// single release on every exit path, and Suspend, which fully releases a
// possibly recursively held lock for a scope and restores the exact prior
// hold depth afterwards.
package vlock
