package rbac

import (
	"log/slog"
	"net/http"
)

// DecisionRecorder receives every guard decision, typically for metrics.
type DecisionRecorder interface {
	ObserveGuardDecision(outcome string)
}

// SessionResolver returns the session view for a request.
type SessionResolver func(r *http.Request) SessionReader

// Middleware wires the route guard and permission checks for HTTP handlers.
type Middleware struct {
	Sessions SessionResolver
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// Guard gates the wrapped routes on authentication and, when allowed is not
// empty, on holding one of the allowed roles. Denied requests are redirected.
func (m Middleware) Guard(allowed ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Evaluate(m.session(r), r.URL.RequestURI(), allowed)
			m.record(r, decision)
			if !decision.Allowed() {
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the principal holds at least one of perms through any of
// its roles.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			sess := m.session(r)
			if sess == nil || !sess.IsAuthenticated() {
				http.Redirect(w, r, LoginRedirect(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}
			roles := sess.Roles()
			for _, p := range perms {
				if AnyHasPermission(roles, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac permission denied", slog.String("path", r.URL.Path), slog.Any("required", perms))
			}
			http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
		})
	}
}

func (m Middleware) session(r *http.Request) SessionReader {
	if m.Sessions == nil {
		return nil
	}
	return m.Sessions(r)
}

func (m Middleware) record(r *http.Request, d Decision) {
	if m.Recorder != nil {
		m.Recorder.ObserveGuardDecision(d.Outcome.String())
	}
	if m.Logger != nil && !d.Allowed() {
		m.Logger.Debug("route guard denied", slog.String("path", r.URL.Path), slog.String("outcome", d.Outcome.String()))
	}
}
