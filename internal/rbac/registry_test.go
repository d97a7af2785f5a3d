package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionsForRoleDeterministic(t *testing.T) {
	for _, role := range Roles() {
		first := PermissionsForRole(role)
		second := PermissionsForRole(role)
		require.NotNil(t, first, role)
		assert.Equal(t, first, second, role)
	}
}

func TestPermissionsForRoleReturnsCopy(t *testing.T) {
	perms := PermissionsForRole(RoleCustomer)
	require.NotEmpty(t, perms)
	perms[0] = "tampered"
	assert.NotContains(t, PermissionsForRole(RoleCustomer), Permission("tampered"))
}

func TestUnknownRoleIsTotal(t *testing.T) {
	unknown := Role("TELLER_TRAINEE")

	perms := PermissionsForRole(unknown)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)
	assert.False(t, HasPermission(unknown, PermBalanceViewOwn))
	assert.False(t, CanLoginToUI(unknown))
	assert.False(t, CanInitiateTransactions(unknown))
	assert.False(t, HasAdministrativePrivileges(unknown))
	assert.False(t, HasAuditAccess(unknown))

	_, ok := UIPath(unknown)
	assert.False(t, ok)
	_, ok = DashboardPath(unknown)
	assert.False(t, ok)
}

func TestBuiltInMatrixHonoursSeparationOfDuties(t *testing.T) {
	require.NoError(t, Validate())

	for _, p := range AdminConfigurationScopes() {
		assert.False(t, HasPermission(RoleCustomer, p), "customer holds %s", p)
	}
	for _, p := range MoneyTransferScopes() {
		assert.False(t, HasPermission(RoleBankStaff, p), "bank staff holds %s", p)
	}
	for _, p := range CustomerExternalTransferScopes() {
		assert.False(t, HasPermission(RoleAdmin, p), "admin holds %s", p)
	}
	for _, p := range UserManagementScopes() {
		assert.False(t, HasPermission(RoleAuditor, p), "auditor holds %s", p)
	}
}

func TestValidateMapReportsEveryViolation(t *testing.T) {
	perms := map[Role]map[Permission]struct{}{
		RoleCustomer:  permissionSet(PermSystemConfigure),
		RoleBankStaff: permissionSet(PermTransferInternal),
		RoleAdmin:     permissionSet(PermTransferExternal),
		RoleAuditor:   permissionSet(PermUsersLock),
		RoleSystem:    permissionSet(),
	}

	err := ValidateMap(perms, roleMetadata)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSeparationOfDuties))
	for _, fragment := range []string{"CUSTOMER holds system.configure", "BANK_STAFF holds transfer.internal", "ADMIN holds transfer.external", "AUDITOR holds users.lock"} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestValidateMapRejectsUndeclaredRoles(t *testing.T) {
	perms := map[Role]map[Permission]struct{}{
		RoleCustomer:  permissionSet(),
		RoleBankStaff: permissionSet(),
		RoleAdmin:     permissionSet(),
		RoleAuditor:   permissionSet(),
		"ROOT":        permissionSet(PermSystemConfigure),
	}

	err := ValidateMap(perms, roleMetadata)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUndeclaredRole))
	assert.Contains(t, err.Error(), "SYSTEM has no permission entry")
	assert.Contains(t, err.Error(), "ROOT")
}

func TestRoleMetadata(t *testing.T) {
	assert.True(t, CanLoginToUI(RoleCustomer))
	assert.False(t, CanLoginToUI(RoleSystem))
	assert.True(t, CanInitiateTransactions(RoleCustomer))
	assert.False(t, CanInitiateTransactions(RoleAdmin))
	assert.True(t, HasAdministrativePrivileges(RoleAdmin))
	assert.False(t, HasAdministrativePrivileges(RoleAuditor))
	assert.True(t, HasAuditAccess(RoleAuditor))

	path, ok := DashboardPath(RoleAdmin)
	require.True(t, ok)
	assert.Equal(t, "/admin/dashboard", path)

	_, ok = UIPath(RoleSystem)
	assert.False(t, ok)
}

func TestDashboardPathFor(t *testing.T) {
	assert.Equal(t, "/admin/dashboard", DashboardPathFor([]Role{RoleSystem, RoleAdmin, RoleCustomer}))
	assert.Equal(t, DefaultDashboardPath, DashboardPathFor([]Role{"CUSTOMER_USER"}))
	assert.Equal(t, DefaultDashboardPath, DashboardPathFor(nil))
}

func TestParseRoles(t *testing.T) {
	roles := ParseRoles([]string{" customer ", "CUSTOMER", "", "admin"})
	assert.Equal(t, []Role{RoleCustomer, RoleAdmin}, roles)
}
