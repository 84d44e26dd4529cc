package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrDuplicateEvent - duplicate webhook delivery detected (ignore silently)
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrInvalidInput - invalid input (reject the request)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found; for tracked issues this is a definitive
	// deletion signal, not a transient failure
	ErrNotFound = errors.New("not found")

	// ErrConflict - conflict (retry with backoff)
	ErrConflict = errors.New("conflict")

	// ErrTransient - transient error (skip this cycle, recovered on the next sweep)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
