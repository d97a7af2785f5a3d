package view

import (
	"net/http"
	"slices"
	"strings"

	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
)

// Viewer is the signed-in principal as the layout sees it.
type Viewer interface {
	IsAuthenticated() bool
	Roles() []rbac.Role
	DisplayName() string
	SidebarCollapsed() bool
}

// UserView is the header summary of the principal.
type UserView struct {
	Name          string
	Roles         []string
	DashboardPath string
}

// NavItem is one sidebar entry.
type NavItem struct {
	Label  string
	Href   string
	Active bool
}

type navEntry struct {
	label string
	href  string
	// any of these permissions reveals the entry; none means always shown
	perms []rbac.Permission
	// roles admitted to the entry's area; nil means any authenticated role
	area []rbac.Role
}

var (
	adminArea    = []rbac.Role{rbac.RoleAdmin}
	reportsArea  = []rbac.Role{rbac.RoleAdmin, rbac.RoleAuditor, rbac.RoleBankStaff}
	mappingsArea = []rbac.Role{rbac.RoleAdmin, rbac.RoleBankStaff}
)

var navEntries = []navEntry{
	{label: "Accounts", href: "/accounts", perms: []rbac.Permission{rbac.PermBalanceViewOwn}},
	{label: "Transactions", href: "/transactions", perms: []rbac.Permission{rbac.PermTransactionsViewOwn}},
	{label: "Transfer", href: "/transfer", perms: []rbac.Permission{rbac.PermTransferInternal}},
	{label: "Cards", href: "/cards", perms: []rbac.Permission{rbac.PermCardsViewOwn}},
	{label: "Loans", href: "/loans", perms: []rbac.Permission{rbac.PermLoansViewOwn}},
	{label: "Admin", href: "/admin/dashboard", perms: []rbac.Permission{rbac.PermDashboardMetrics}, area: adminArea},
	{label: "Users", href: "/admin/users", perms: []rbac.Permission{rbac.PermUsersView}, area: adminArea},
	{label: "Mappings", href: "/mappings", perms: []rbac.Permission{rbac.PermMappingsView}, area: mappingsArea},
	{label: "Reports", href: "/reports", perms: []rbac.Permission{rbac.PermReportsView}, area: reportsArea},
	{label: "Support", href: "/support", perms: []rbac.Permission{rbac.PermSupportTicketCreate}},
	{label: "Profile", href: "/profile"},
}

// Navigation lists the sidebar entries visible to roles.
func Navigation(roles []rbac.Role, currentPath string) []NavItem {
	home := rbac.DashboardPathFor(roles)
	items := []NavItem{{Label: "Dashboard", Href: home, Active: currentPath == home}}
	for _, entry := range navEntries {
		if entry.href == home || !inArea(roles, entry.area) || !visible(roles, entry.perms) {
			continue
		}
		items = append(items, NavItem{
			Label:  entry.label,
			Href:   entry.href,
			Active: currentPath == entry.href || strings.HasPrefix(currentPath, entry.href+"/"),
		})
	}
	return items
}

func inArea(roles, area []rbac.Role) bool {
	if len(area) == 0 {
		return true
	}
	for _, r := range roles {
		if slices.Contains(area, r) {
			return true
		}
	}
	return false
}

func visible(roles []rbac.Role, perms []rbac.Permission) bool {
	if len(perms) == 0 {
		return true
	}
	for _, p := range perms {
		if rbac.AnyHasPermission(roles, p) {
			return true
		}
	}
	return false
}

// Pages fills the layout part of TemplateData for a request.
type Pages struct {
	CSRF   *shared.CSRFManager
	Viewer func(*http.Request) Viewer
}

// Data builds TemplateData for r. Pending flashes are drained into the page.
func (p Pages) Data(r *http.Request, title string, data any) TemplateData {
	td := TemplateData{Title: title, CurrentPath: r.URL.Path, Data: data}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		td.Flashes = sess.DrainFlashes()
		if p.CSRF != nil {
			td.CSRFToken, _ = p.CSRF.EnsureToken(r.Context(), sess)
		}
	}
	if p.Viewer == nil {
		return td
	}
	v := p.Viewer(r)
	if v == nil || !v.IsAuthenticated() {
		return td
	}
	roles := v.Roles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		if md, ok := rbac.Metadata(role); ok {
			names = append(names, md.DisplayName)
			continue
		}
		names = append(names, role.String())
	}
	td.User = &UserView{Name: v.DisplayName(), Roles: names, DashboardPath: rbac.DashboardPathFor(roles)}
	td.Nav = Navigation(roles, r.URL.Path)
	td.SidebarCollapsed = v.SidebarCollapsed()
	return td
}
