// Package apierror classifies failed backend calls and turns each one into a
// single user notification.
package apierror

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind enumerates the error taxonomy.
type Kind int

const (
	KindUnclassified Kind = iota
	KindAuthenticationRequired
	KindAuthorizationDenied
	KindNotFound
	KindConflict
	KindValidationFailed
	KindRateLimited
	KindServerError
	KindNetworkUnreachable
	KindRequestSetupFailed
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindAuthorizationDenied:
		return "authorization_denied"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidationFailed:
		return "validation_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindRequestSetupFailed:
		return "request_setup_failed"
	default:
		return "unclassified"
	}
}

// Callback keys for errors that are not tied to an HTTP status.
const (
	KeyNetworkError      = "NETWORK_ERROR"
	KeyRequestSetupError = "REQUEST_SETUP_ERROR"
	KeyGenericError      = "GENERIC_ERROR"
)

// StatusKey returns the callback key for an HTTP status, e.g. HTTP_401.
func StatusKey(status int) string {
	return "HTTP_" + strconv.Itoa(status)
}

// Error is a classified failure. The set of implementations is closed.
type Error interface {
	error
	Kind() Kind
	// Key identifies the registered callback to run for this error.
	Key() string
	sealed()
}

// AuthenticationRequired means the session token was rejected (401).
type AuthenticationRequired struct{}

// AuthorizationDenied means the principal lacks the right (403).
type AuthorizationDenied struct{}

// NotFound means the requested resource does not exist (404).
type NotFound struct{}

// Conflict means the request clashes with existing state (409).
type Conflict struct {
	Message string
}

// ValidationFailed means the backend rejected the payload (422).
type ValidationFailed struct {
	Message string
	Fields  map[string]string
}

// RateLimited means the caller sent too many requests (429).
type RateLimited struct {
	RetryAfter time.Duration
}

// ServerError covers 5xx answers.
type ServerError struct {
	Status int
}

// NetworkUnreachable means the request was sent but no response came back.
type NetworkUnreachable struct {
	Cause error
}

// RequestSetupFailed means the request was never sent.
type RequestSetupFailed struct {
	Cause error
}

// Unclassified covers anything else, including unexpected statuses.
type Unclassified struct {
	Status int
	Cause  error
}

func (AuthenticationRequired) Error() string { return "authentication required" }
func (AuthorizationDenied) Error() string    { return "authorization denied" }
func (NotFound) Error() string               { return "not found" }
func (e Conflict) Error() string             { return "conflict: " + e.Message }
func (e ValidationFailed) Error() string     { return "validation failed: " + e.Message }
func (e RateLimited) Error() string          { return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter) }
func (e ServerError) Error() string          { return fmt.Sprintf("server error %d", e.Status) }
func (e NetworkUnreachable) Error() string   { return fmt.Sprintf("network unreachable: %v", e.Cause) }
func (e RequestSetupFailed) Error() string   { return fmt.Sprintf("request setup failed: %v", e.Cause) }

func (e Unclassified) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unclassified error: %v", e.Cause)
	}
	return fmt.Sprintf("unclassified error, status %d", e.Status)
}

func (AuthenticationRequired) Kind() Kind { return KindAuthenticationRequired }
func (AuthorizationDenied) Kind() Kind    { return KindAuthorizationDenied }
func (NotFound) Kind() Kind               { return KindNotFound }
func (Conflict) Kind() Kind               { return KindConflict }
func (ValidationFailed) Kind() Kind       { return KindValidationFailed }
func (RateLimited) Kind() Kind            { return KindRateLimited }
func (ServerError) Kind() Kind            { return KindServerError }
func (NetworkUnreachable) Kind() Kind     { return KindNetworkUnreachable }
func (RequestSetupFailed) Kind() Kind     { return KindRequestSetupFailed }
func (Unclassified) Kind() Kind           { return KindUnclassified }

func (AuthenticationRequired) Key() string { return StatusKey(http.StatusUnauthorized) }
func (AuthorizationDenied) Key() string    { return StatusKey(http.StatusForbidden) }
func (NotFound) Key() string               { return StatusKey(http.StatusNotFound) }
func (Conflict) Key() string               { return StatusKey(http.StatusConflict) }
func (ValidationFailed) Key() string       { return StatusKey(http.StatusUnprocessableEntity) }
func (RateLimited) Key() string            { return StatusKey(http.StatusTooManyRequests) }
func (e ServerError) Key() string          { return StatusKey(e.Status) }
func (NetworkUnreachable) Key() string     { return KeyNetworkError }
func (RequestSetupFailed) Key() string     { return KeyRequestSetupError }
func (Unclassified) Key() string           { return KeyGenericError }

func (e NetworkUnreachable) Unwrap() error { return e.Cause }
func (e RequestSetupFailed) Unwrap() error { return e.Cause }
func (e Unclassified) Unwrap() error       { return e.Cause }

func (AuthenticationRequired) sealed() {}
func (AuthorizationDenied) sealed()    {}
func (NotFound) sealed()               {}
func (Conflict) sealed()               {}
func (ValidationFailed) sealed()       {}
func (RateLimited) sealed()            {}
func (ServerError) sealed()            {}
func (NetworkUnreachable) sealed()     {}
func (RequestSetupFailed) sealed()     {}
func (Unclassified) sealed()           {}
