package rbac

import (
	"errors"
	"fmt"
	"slices"
)

// rolePermissions is the static role to permission matrix. It is never mutated;
// every accessor hands out copies.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleCustomer: permissionSet(
		PermBalanceViewOwn,
		PermTransactionsViewOwn,
		PermCardsViewOwn,
		PermLoansViewOwn,
		PermProfileEditOwn,
		PermBeneficiariesManage,
		PermSupportTicketCreate,
		PermTransferInternal,
		PermTransferExternal,
	),
	RoleBankStaff: permissionSet(
		PermCustomersView,
		PermMappingsView,
		PermMappingsManage,
		PermSupportTicketsHandle,
		PermReportsView,
		PermReportsGenerate,
		PermReportsDownload,
	),
	RoleAdmin: permissionSet(
		PermUsersView,
		PermUsersCreate,
		PermUsersLock,
		PermUsersUnlock,
		PermUsersPasswordReset,
		PermSystemConfigure,
		PermRolesManage,
		PermDashboardMetrics,
		PermCustomersView,
		PermMappingsView,
		PermMappingsManage,
		PermAuditLogsView,
		PermReportsView,
		PermReportsGenerate,
		PermReportsDownload,
		PermReportsExport,
	),
	RoleAuditor: permissionSet(
		PermUsersView,
		PermCustomersView,
		PermMappingsView,
		PermAuditLogsView,
		PermReportsView,
		PermReportsDownload,
		PermReportsExport,
	),
	RoleSystem: permissionSet(
		PermBatchProcess,
		PermNotificationsDispatch,
		PermDashboardMetrics,
	),
}

var roleMetadata = map[Role]RoleMetadata{
	RoleCustomer: {
		DisplayName:             "Customer",
		CanLoginToUI:            true,
		CanInitiateTransactions: true,
		UIPath:                  "/",
		DashboardPath:           "/dashboard",
	},
	RoleBankStaff: {
		DisplayName:   "Bank Staff",
		CanLoginToUI:  true,
		UIPath:        "/mappings",
		DashboardPath: "/mappings",
	},
	RoleAdmin: {
		DisplayName:             "Administrator",
		CanLoginToUI:            true,
		AdministrativePrivilege: true,
		AuditAccess:             true,
		UIPath:                  "/admin",
		DashboardPath:           "/admin/dashboard",
	},
	RoleAuditor: {
		DisplayName:   "Auditor",
		CanLoginToUI:  true,
		AuditAccess:   true,
		UIPath:        "/reports",
		DashboardPath: "/reports",
	},
	RoleSystem: {
		DisplayName: "System",
	},
}

// declaredRoles fixes the presentation order of roles.
var declaredRoles = []Role{RoleCustomer, RoleBankStaff, RoleAdmin, RoleAuditor, RoleSystem}

// DefaultDashboardPath is used when none of a principal's roles declares one.
const DefaultDashboardPath = "/dashboard"

func permissionSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Roles returns every declared role.
func Roles() []Role {
	return slices.Clone(declaredRoles)
}

// PermissionsForRole returns the sorted permission set of a role. Unknown roles
// yield an empty, non-nil slice.
func PermissionsForRole(role Role) []Permission {
	set := rolePermissions[role]
	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	slices.Sort(perms)
	return perms
}

// HasPermission reports whether role holds perm.
func HasPermission(role Role, perm Permission) bool {
	_, ok := rolePermissions[role][perm]
	return ok
}

// AnyHasPermission reports whether at least one of roles holds perm.
func AnyHasPermission(roles []Role, perm Permission) bool {
	for _, role := range roles {
		if HasPermission(role, perm) {
			return true
		}
	}
	return false
}

// Metadata returns the metadata declared for role.
func Metadata(role Role) (RoleMetadata, bool) {
	meta, ok := roleMetadata[role]
	return meta, ok
}

// CanLoginToUI reports whether the role may sign in to the web front end.
func CanLoginToUI(role Role) bool {
	return roleMetadata[role].CanLoginToUI
}

// CanInitiateTransactions reports whether the role may start money movements.
func CanInitiateTransactions(role Role) bool {
	return roleMetadata[role].CanInitiateTransactions
}

// HasAdministrativePrivileges reports whether the role administers the platform.
func HasAdministrativePrivileges(role Role) bool {
	return roleMetadata[role].AdministrativePrivilege
}

// HasAuditAccess reports whether the role may inspect audit trails.
func HasAuditAccess(role Role) bool {
	return roleMetadata[role].AuditAccess
}

// UIPath returns the route prefix of the role's area. The boolean is false for
// unknown roles and for roles without a UI.
func UIPath(role Role) (string, bool) {
	meta, ok := roleMetadata[role]
	if !ok || meta.UIPath == "" {
		return "", false
	}
	return meta.UIPath, true
}

// DashboardPath returns the post-login landing page of the role.
func DashboardPath(role Role) (string, bool) {
	meta, ok := roleMetadata[role]
	if !ok || meta.DashboardPath == "" {
		return "", false
	}
	return meta.DashboardPath, true
}

// DashboardPathFor picks the landing page for a principal holding roles. The
// first role declaring a dashboard wins.
func DashboardPathFor(roles []Role) string {
	for _, role := range roles {
		if path, ok := DashboardPath(role); ok {
			return path
		}
	}
	return DefaultDashboardPath
}

// separationRule forbids a role from holding any of a permission group.
type separationRule struct {
	role      Role
	forbidden []Permission
	reason    string
}

var separationRules = []separationRule{
	{role: RoleCustomer, forbidden: AdminConfigurationScopes(), reason: "customers must not configure the platform"},
	{role: RoleBankStaff, forbidden: MoneyTransferScopes(), reason: "bank staff must not move money"},
	{role: RoleAdmin, forbidden: CustomerExternalTransferScopes(), reason: "administrators must not move customer money"},
	{role: RoleAuditor, forbidden: UserManagementScopes(), reason: "auditors must not manage users"},
}

// ErrSeparationOfDuties marks a violated separation invariant.
var ErrSeparationOfDuties = errors.New("rbac: separation of duties violated")

// ErrUndeclaredRole marks a role present in the matrix without metadata.
var ErrUndeclaredRole = errors.New("rbac: undeclared role")

// Validate checks the built-in matrix. It must pass before the process serves
// traffic.
func Validate() error {
	return ValidateMap(rolePermissions, roleMetadata)
}

// ValidateMap checks a role matrix against the separation invariants and the
// metadata table. All violations are reported together.
func ValidateMap(perms map[Role]map[Permission]struct{}, meta map[Role]RoleMetadata) error {
	var errs []error
	for _, rule := range separationRules {
		granted := perms[rule.role]
		for _, p := range rule.forbidden {
			if _, ok := granted[p]; ok {
				errs = append(errs, fmt.Errorf("%w: %s holds %s (%s)", ErrSeparationOfDuties, rule.role, p, rule.reason))
			}
		}
	}
	for _, role := range declaredRoles {
		if _, ok := meta[role]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s has no metadata", ErrUndeclaredRole, role))
		}
		if _, ok := perms[role]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s has no permission entry", ErrUndeclaredRole, role))
		}
	}
	for role := range perms {
		if !slices.Contains(declaredRoles, role) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUndeclaredRole, role))
		}
	}
	return errors.Join(errs...)
}
