package auth

import (
	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/rbac"
)

// UserDetails is the profile record kept in the session.
type UserDetails = backend.UserDetails

// Principal is the authenticated user as persisted in the session.
type Principal struct {
	Token       string
	Roles       []rbac.Role
	UserDetails []UserDetails
}

// DisplayName returns the name shown in the layout.
func (p Principal) DisplayName() string {
	if len(p.UserDetails) == 0 {
		return ""
	}
	if p.UserDetails[0].FullName != "" {
		return p.UserDetails[0].FullName
	}
	return p.UserDetails[0].Username
}

// CanUseUI reports whether the principal may sign in to the web front end.
// Roles unknown to the registry are left to the route guard.
func (p Principal) CanUseUI() bool {
	for _, role := range p.Roles {
		if !role.Known() || rbac.CanLoginToUI(role) {
			return true
		}
	}
	return len(p.Roles) == 0
}
