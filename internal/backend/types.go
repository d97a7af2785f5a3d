package backend

import (
	"io"
	"time"
)

// Credentials are submitted by the login form.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserDetails is the profile record returned at login.
type UserDetails struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
}

// LoginResult carries the bearer token and the principal's roles.
type LoginResult struct {
	Token       string        `json:"token"`
	Roles       []string      `json:"roles"`
	UserDetails []UserDetails `json:"userDetails"`
}

// AdminProfile is returned by GET /admin/me.
type AdminProfile struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	FullName    string     `json:"fullName"`
	Email       string     `json:"email"`
	Roles       []string   `json:"roles"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// DashboardMetrics summarises platform activity.
type DashboardMetrics struct {
	TotalCustomers          int       `json:"totalCustomers"`
	ActiveUsers             int       `json:"activeUsers"`
	LockedUsers             int       `json:"lockedUsers"`
	TransactionsToday       int       `json:"transactionsToday"`
	TransactionVolumeToday  float64   `json:"transactionVolumeToday"`
	FailedTransactionsToday int       `json:"failedTransactionsToday"`
	Currency                string    `json:"currency"`
	GeneratedAt             time.Time `json:"generatedAt"`
}

// CustomerSummary is a row of the recent customers widget.
type CustomerSummary struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// TransactionSummary is a row of the admin transaction widgets.
type TransactionSummary struct {
	ID            string    `json:"id"`
	Reference     string    `json:"reference"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// User is an account managed from the admin control center.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	Roles       []string   `json:"roles"`
	Locked      bool       `json:"locked"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// UserPage is one page of the user listing.
type UserPage struct {
	Items []User `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
}

// NewUser is the payload of POST /admin/users.
type NewUser struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Roles    []string `json:"roles"`
}

// Report describes a generated or pending report.
type Report struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Format      string    `json:"format"`
	Status      string    `json:"status"`
	RequestedBy string    `json:"requestedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReportRequest is the payload of POST /reports/generate.
type ReportRequest struct {
	Type   string `json:"type"`
	From   string `json:"from"`
	To     string `json:"to"`
	Format string `json:"format"`
}

// Download is a streamed report file. The caller must close Body.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Mapping links a login user to a banking customer record.
type Mapping struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	CustomerID   string    `json:"customerId"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewMapping is the payload of POST /user-customer-mappings.
type NewMapping struct {
	UserID       string `json:"userId"`
	CustomerID   string `json:"customerId"`
	Relationship string `json:"relationship"`
}

// Account is a customer deposit account.
type Account struct {
	ID       string  `json:"id"`
	Number   string  `json:"number"`
	Type     string  `json:"type"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

// Transaction is a posted or pending movement on a customer account.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	PostedAt    time.Time `json:"postedAt"`
}

// Card is a payment card issued to the customer.
type Card struct {
	ID           string `json:"id"`
	MaskedNumber string `json:"maskedNumber"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Expiry       string `json:"expiry"`
}

// Loan is a credit facility held by the customer.
type Loan struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Principal   float64 `json:"principal"`
	Outstanding float64 `json:"outstanding"`
	Rate        float64 `json:"rate"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"`
}

// TransferRequest is the payload of POST /transfers.
type TransferRequest struct {
	FromAccount string  `json:"fromAccount"`
	ToAccount   string  `json:"toAccount"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Reference   string  `json:"reference"`
}

// TransferReceipt acknowledges a submitted transfer.
type TransferReceipt struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
}
