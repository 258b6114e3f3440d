package application

import (
	"errors"
	"fmt"

	"github.com/example/session-scheduler/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when a caller presents no valid API key.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a record with the same identity exists.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInUse is returned when a resource cannot be removed because sessions
	// still reference it.
	ErrInUse = errors.New("application: resource in use")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver,
// prefixing each field name.
func (v *ValidationError) merge(prefix string, other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(prefix+field, msg)
	}
}

// ConflictError rejects a write whose bookings contend for a resource.
type ConflictError struct {
	Conflicts []scheduler.Conflict
}

func (e *ConflictError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Conflicts) == 1 {
		return "schedule conflict: " + e.Conflicts[0].Message
	}
	return fmt.Sprintf("schedule conflict: %d conflicts", len(e.Conflicts))
}
