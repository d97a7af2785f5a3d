package backend

import (
	"context"
	"net/url"
	"strconv"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	var out LoginResult
	err := c.postJSON(ctx, "/auth/login", "", creds, &out)
	return out, err
}

// Me returns the profile of the signed-in administrator.
func (c *Client) Me(ctx context.Context, token string) (AdminProfile, error) {
	var out AdminProfile
	err := c.getJSON(ctx, "/admin/me", token, nil, &out)
	return out, err
}

// DashboardMetrics returns the headline counters of the admin dashboard.
func (c *Client) DashboardMetrics(ctx context.Context, token string) (DashboardMetrics, error) {
	var out DashboardMetrics
	err := c.getJSON(ctx, "/admin/dashboard/metrics", token, nil, &out)
	return out, err
}

// DashboardCustomers returns the most recently onboarded customers.
func (c *Client) DashboardCustomers(ctx context.Context, token string) ([]CustomerSummary, error) {
	var out []CustomerSummary
	err := c.getJSON(ctx, "/admin/dashboard/customers", token, nil, &out)
	return out, err
}

// DashboardTransactions returns the latest transactions.
func (c *Client) DashboardTransactions(ctx context.Context, token string) ([]TransactionSummary, error) {
	var out []TransactionSummary
	err := c.getJSON(ctx, "/admin/dashboard/transactions", token, nil, &out)
	return out, err
}

// FailedTransactions returns the latest failed transactions.
func (c *Client) FailedTransactions(ctx context.Context, token string) ([]TransactionSummary, error) {
	var out []TransactionSummary
	err := c.getJSON(ctx, "/admin/dashboard/failed-transactions", token, nil, &out)
	return out, err
}

// ListUsers returns one page of user accounts.
func (c *Client) ListUsers(ctx context.Context, token string, page, size int) (UserPage, error) {
	var out UserPage
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	err := c.getJSON(ctx, "/admin/users", token, q, &out)
	return out, err
}

// CreateUser provisions a user account.
func (c *Client) CreateUser(ctx context.Context, token string, in NewUser) (User, error) {
	var out User
	err := c.postJSON(ctx, "/admin/users", token, in, &out)
	return out, err
}

// LockUser blocks a user from signing in.
func (c *Client) LockUser(ctx context.Context, token, id string) error {
	return c.postJSON(ctx, "/admin/users/"+escape(id)+"/lock", token, nil, nil)
}

// UnlockUser lifts a lock placed on a user.
func (c *Client) UnlockUser(ctx context.Context, token, id string) error {
	return c.postJSON(ctx, "/admin/users/"+escape(id)+"/unlock", token, nil, nil)
}

// ForcePasswordReset requires the user to choose a new password at next login.
func (c *Client) ForcePasswordReset(ctx context.Context, token, id string) error {
	return c.postJSON(ctx, "/admin/users/"+escape(id)+"/force-password-reset", token, nil, nil)
}

// AdminLogout revokes the administrator's token on the backend.
func (c *Client) AdminLogout(ctx context.Context, token string) error {
	return c.postJSON(ctx, "/admin/logout", token, nil, nil)
}
