package apierror

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"

	"github.com/meridian-bank/meridian-web/internal/rbac"
)

// Severity of a user notification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// LoginPath is where an expired session is sent when redirects are enabled.
const LoginPath = rbac.LoginPath

// Notification is what the user sees for one failure.
type Notification struct {
	Severity Severity
	Message  string
	Kind     Kind
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Callback runs after the notification for errors registered under its key.
type Callback func(ctx context.Context, err Error)

// KindRecorder counts classified errors, typically for metrics.
type KindRecorder interface {
	ObserveAPIError(kind string)
}

// Options tune a Facade.
type Options struct {
	// RedirectOnUnauthenticated makes 401 outcomes carry a login redirect.
	RedirectOnUnauthenticated bool
	Logger                    *slog.Logger
	Recorder                  KindRecorder
}

// Outcome reports what Handle did with an error.
type Outcome struct {
	Err          Error
	Notification Notification
	// RedirectTo is set when the caller should navigate away, e.g. to login.
	RedirectTo string
}

// Redirect follows the outcome's redirect, if any, and reports whether the
// response was written. Login redirects carry the current page as next.
func (o Outcome) Redirect(w http.ResponseWriter, r *http.Request) bool {
	if o.RedirectTo == "" {
		return false
	}
	target := o.RedirectTo
	if target == LoginPath && r.Method == http.MethodGet {
		target = rbac.LoginRedirect(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
	return true
}

// RedirectForm is Redirect for form submissions that re-render on failure.
// An authentication failure always redirects to login instead of re-rendering.
func (o Outcome) RedirectForm(w http.ResponseWriter, r *http.Request) bool {
	if o.Redirect(w, r) {
		return true
	}
	if o.Err == nil || o.Err.Kind() != KindAuthenticationRequired {
		return false
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	return true
}

// Facade is the single error handling service of the process. Construct one
// at startup and pass it to every handler that fetches data.
type Facade struct {
	notifier  Notifier
	opts      Options
	callbacks *callbackSet
}

type callbackSet struct {
	mu    sync.RWMutex
	byKey map[string]Callback
}

// New builds a Facade delivering notifications through notifier.
func New(notifier Notifier, opts Options) *Facade {
	return &Facade{notifier: notifier, opts: opts, callbacks: &callbackSet{byKey: make(map[string]Callback)}}
}

// WithNotifier returns a Facade that delivers through notifier but shares
// options and callbacks with f. A nil notifier silences notifications, for
// endpoints that report the error in their own response body.
func (f *Facade) WithNotifier(notifier Notifier) *Facade {
	if f == nil {
		return nil
	}
	return &Facade{notifier: notifier, opts: f.opts, callbacks: f.callbacks}
}

// OnError registers cb for the given key, e.g. StatusKey(401) or
// KeyNetworkError. A later registration replaces an earlier one.
func (f *Facade) OnError(key string, cb Callback) {
	f.callbacks.mu.Lock()
	defer f.callbacks.mu.Unlock()
	if cb == nil {
		delete(f.callbacks.byKey, key)
		return
	}
	f.callbacks.byKey[key] = cb
}

// Handle classifies err, emits exactly one notification and runs the matching
// callback. It never panics; failures while notifying are logged and dropped.
func (f *Facade) Handle(ctx context.Context, err error) Outcome {
	classified := Classify(err)
	if classified == nil {
		return Outcome{}
	}
	n := NotificationFor(classified)
	out := Outcome{Err: classified, Notification: n}
	if classified.Kind() == KindAuthenticationRequired && f.opts.RedirectOnUnauthenticated {
		out.RedirectTo = LoginPath
	}

	if f.opts.Logger != nil {
		f.opts.Logger.Warn("backend call failed",
			slog.String("kind", classified.Kind().String()),
			slog.String("key", classified.Key()),
			slog.Any("error", err),
		)
	}
	if f.opts.Recorder != nil {
		f.opts.Recorder.ObserveAPIError(classified.Kind().String())
	}

	f.safely("notify", func() {
		if f.notifier != nil {
			f.notifier.Notify(ctx, n)
		}
	})

	f.callbacks.mu.RLock()
	cb := f.callbacks.byKey[classified.Key()]
	f.callbacks.mu.RUnlock()
	if cb != nil {
		f.safely("callback", func() { cb(ctx, classified) })
	}
	return out
}

func (f *Facade) safely(stage string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil && f.opts.Logger != nil {
			f.opts.Logger.Error("error facade "+stage+" panicked", slog.Any("panic", rec))
		}
	}()
	fn()
}

// NotificationFor returns the user-facing message of a classified error.
func NotificationFor(e Error) Notification {
	n := Notification{Severity: SeverityError, Kind: e.Kind()}
	switch v := e.(type) {
	case AuthenticationRequired:
		n.Severity = SeverityWarning
		n.Message = "Your session has expired. Please sign in again."
	case AuthorizationDenied:
		n.Message = "You do not have permission to perform this action."
	case NotFound:
		n.Severity = SeverityWarning
		n.Message = "The requested resource was not found."
	case Conflict:
		n.Severity = SeverityWarning
		n.Message = orDefault(v.Message, "This record conflicts with an existing one.")
	case ValidationFailed:
		n.Severity = SeverityWarning
		n.Message = orDefault(v.Message, "Please check the submitted data and try again.")
	case RateLimited:
		n.Severity = SeverityWarning
		n.Message = "Too many requests. Please wait a moment and try again."
		if secs := int(math.Ceil(v.RetryAfter.Seconds())); secs > 0 {
			n.Message = fmt.Sprintf("Too many requests. Please try again in %d seconds.", secs)
		}
	case ServerError:
		n.Message = "The server encountered an error. Please try again later."
	case NetworkUnreachable:
		n.Message = "Unable to reach the server. Check your connection and try again."
	case RequestSetupFailed:
		n.Message = "The request could not be prepared. Please try again."
	default:
		n.Message = "An unexpected error occurred. Please try again."
	}
	return n
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
