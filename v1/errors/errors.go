package errors

import "errors"

var (
	ErrNotOwner  = errors.New("latch: not the lock owner")
	ErrBusClosed = errors.New("latch: signal bus closed")
)
