package backend

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyEnvelope indicates an admin response without a data payload.
var ErrEmptyEnvelope = errors.New("empty data envelope")

// StatusError is returned when the API answered with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// TransportError is returned when a request was sent but no response arrived.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SetupError is returned when a request could not be built, so nothing was sent.
type SetupError struct {
	Path string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("backend: prepare %s: %v", e.Path, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
