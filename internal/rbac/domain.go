package rbac

import "strings"

// Role identifies a principal class known to the front end.
type Role string

// Declared roles. The set is fixed at compile time.
const (
	RoleCustomer  Role = "CUSTOMER"
	RoleBankStaff Role = "BANK_STAFF"
	RoleAdmin     Role = "ADMIN"
	RoleAuditor   Role = "AUDITOR"
	RoleSystem    Role = "SYSTEM"
)

// Permission represents an atomic capability.
type Permission string

// RoleMetadata describes how a role is presented and what it may do in the UI.
type RoleMetadata struct {
	DisplayName             string
	CanLoginToUI            bool
	CanInitiateTransactions bool
	AdministrativePrivilege bool
	AuditAccess             bool
	UIPath                  string
	DashboardPath           string
}

// ParseRole normalises a raw role string as stored in the session or returned
// by the backend. Unknown roles are preserved so the guard can still match them.
func ParseRole(raw string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(raw)))
}

// ParseRoles normalises and deduplicates raw role strings, keeping their order.
func ParseRoles(raw []string) []Role {
	seen := make(map[Role]struct{}, len(raw))
	roles := make([]Role, 0, len(raw))
	for _, r := range raw {
		role := ParseRole(r)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }

// Known reports whether the role is one of the declared roles.
func (r Role) Known() bool {
	_, ok := roleMetadata[r]
	return ok
}
