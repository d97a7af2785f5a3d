package rbac

import (
	"net/url"
	"strings"
)

// Outcome classifies a guard decision.
type Outcome int

const (
	// Allow lets the request reach the guarded handler.
	Allow Outcome = iota
	// DenyUnauthenticated sends the visitor to the login page.
	DenyUnauthenticated
	// DenyUnauthorized sends the principal to the unauthorized page.
	DenyUnauthorized
)

// Guard redirect targets.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	NextParam        = "next"
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyUnauthorized:
		return "deny_unauthorized"
	default:
		return "unknown"
	}
}

// Decision is the result of evaluating one navigation attempt.
type Decision struct {
	Outcome    Outcome
	RedirectTo string
}

// Allowed reports whether the decision lets the request through.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

// SessionReader is the read-only view of the auth session the guard consults.
type SessionReader interface {
	IsAuthenticated() bool
	Roles() []Role
}

// Evaluate decides whether the principal behind sess may reach target.
//
// Authentication is checked before roles. A nil or empty allowed list means any
// authenticated principal passes. Otherwise one shared role is enough.
func Evaluate(sess SessionReader, target string, allowed []Role) Decision {
	if sess == nil || !sess.IsAuthenticated() {
		return Decision{Outcome: DenyUnauthenticated, RedirectTo: LoginRedirect(target)}
	}
	if len(allowed) == 0 {
		return Decision{Outcome: Allow}
	}
	if !intersects(sess.Roles(), allowed) {
		return Decision{Outcome: DenyUnauthorized, RedirectTo: UnauthorizedPath}
	}
	return Decision{Outcome: Allow}
}

// LoginRedirect builds the login URL carrying the original target.
func LoginRedirect(target string) string {
	if target == "" || !IsSafeRedirect(target) {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{NextParam: {target}}.Encode()
}

// IsSafeRedirect reports whether target is a local absolute path that can be
// used as a post-login destination.
func IsSafeRedirect(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

func intersects(held, allowed []Role) bool {
	for _, a := range allowed {
		a = ParseRole(string(a))
		for _, h := range held {
			if ParseRole(string(h)) == a {
				return true
			}
		}
	}
	return false
}
