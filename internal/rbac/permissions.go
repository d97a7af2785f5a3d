package rbac

// Customer self-service permissions.
const (
	PermBalanceViewOwn      Permission = "balance.view_own"
	PermTransactionsViewOwn Permission = "transactions.view_own"
	PermCardsViewOwn        Permission = "cards.view_own"
	PermLoansViewOwn        Permission = "loans.view_own"
	PermProfileEditOwn      Permission = "profile.edit_own"
	PermBeneficiariesManage Permission = "beneficiaries.manage"
	PermSupportTicketCreate Permission = "support.ticket_create"
)

// Money movement permissions.
const (
	PermTransferInternal Permission = "transfer.internal"
	PermTransferExternal Permission = "transfer.external"
	PermTransferApprove  Permission = "transfer.approve"
)

// Branch operations permissions.
const (
	PermCustomersView        Permission = "customers.view"
	PermMappingsView         Permission = "mappings.view"
	PermMappingsManage       Permission = "mappings.manage"
	PermSupportTicketsHandle Permission = "support.tickets_handle"
)

// User management permissions.
const (
	PermUsersView          Permission = "users.view"
	PermUsersCreate        Permission = "users.create"
	PermUsersLock          Permission = "users.lock"
	PermUsersUnlock        Permission = "users.unlock"
	PermUsersPasswordReset Permission = "users.password_reset"
)

// Administrative configuration permissions.
const (
	PermSystemConfigure  Permission = "system.configure"
	PermRolesManage      Permission = "roles.manage"
	PermDashboardMetrics Permission = "dashboard.metrics"
)

// Oversight and reporting permissions.
const (
	PermAuditLogsView   Permission = "audit.logs_view"
	PermReportsView     Permission = "reports.view"
	PermReportsGenerate Permission = "reports.generate"
	PermReportsDownload Permission = "reports.download"
	PermReportsExport   Permission = "reports.export"
)

// Machine-to-machine permissions.
const (
	PermBatchProcess          Permission = "batch.process"
	PermNotificationsDispatch Permission = "notifications.dispatch"
)

// AdminConfigurationScopes lists permissions that configure the platform itself.
func AdminConfigurationScopes() []Permission {
	return []Permission{PermSystemConfigure, PermRolesManage}
}

// MoneyTransferScopes lists permissions that move money.
func MoneyTransferScopes() []Permission {
	return []Permission{PermTransferInternal, PermTransferExternal, PermTransferApprove}
}

// CustomerExternalTransferScopes lists customer-initiated transfers leaving the bank.
func CustomerExternalTransferScopes() []Permission {
	return []Permission{PermTransferExternal}
}

// UserManagementScopes lists permissions that administer user accounts.
func UserManagementScopes() []Permission {
	return []Permission{
		PermUsersCreate,
		PermUsersLock,
		PermUsersUnlock,
		PermUsersPasswordReset,
	}
}
