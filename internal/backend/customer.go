package backend

import (
	"context"
	"net/url"
	"strconv"
)

// Profile returns the customer's own profile.
func (c *Client) Profile(ctx context.Context, token string) (UserDetails, error) {
	var out UserDetails
	err := c.getJSON(ctx, "/profile", token, nil, &out)
	return out, err
}

// Accounts returns the customer's accounts.
func (c *Client) Accounts(ctx context.Context, token string) ([]Account, error) {
	var out []Account
	err := c.getJSON(ctx, "/accounts", token, nil, &out)
	return out, err
}

// Transactions returns the customer's latest transactions.
func (c *Client) Transactions(ctx context.Context, token string, limit int) ([]Transaction, error) {
	var out []Transaction
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	err := c.getJSON(ctx, "/transactions", token, q, &out)
	return out, err
}

// Cards returns the customer's payment cards.
func (c *Client) Cards(ctx context.Context, token string) ([]Card, error) {
	var out []Card
	err := c.getJSON(ctx, "/cards", token, nil, &out)
	return out, err
}

// Loans returns the customer's credit facilities.
func (c *Client) Loans(ctx context.Context, token string) ([]Loan, error) {
	var out []Loan
	err := c.getJSON(ctx, "/loans", token, nil, &out)
	return out, err
}

// Transfer submits a transfer between accounts.
func (c *Client) Transfer(ctx context.Context, token string, in TransferRequest) (TransferReceipt, error) {
	var out TransferReceipt
	err := c.postJSON(ctx, "/transfers", token, in, &out)
	return out, err
}
