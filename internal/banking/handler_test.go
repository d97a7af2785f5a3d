package banking_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-bank/meridian-web/internal/apierror"
	"github.com/meridian-bank/meridian-web/internal/auth"
	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/banking"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
)

type fakeAPI struct {
	accounts     []backend.Account
	accountsErr  error
	txns         []backend.Transaction
	txnsErr      error
	transferErr  error
	transfers    atomic.Int32
	lastTransfer backend.TransferRequest
	lastLimit    int
}

func (f *fakeAPI) Profile(ctx context.Context, token string) (backend.UserDetails, error) {
	return backend.UserDetails{ID: "u-1", Username: "jdoe", FullName: "Jane Doe", Email: "jane@example.com"}, nil
}

func (f *fakeAPI) Accounts(ctx context.Context, token string) ([]backend.Account, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeAPI) Transactions(ctx context.Context, token string, limit int) ([]backend.Transaction, error) {
	f.lastLimit = limit
	return f.txns, f.txnsErr
}

func (f *fakeAPI) Cards(ctx context.Context, token string) ([]backend.Card, error) {
	return []backend.Card{{ID: "c1", MaskedNumber: "4111111111111111", Type: "DEBIT", Status: "ACTIVE", Expiry: "04/29"}}, nil
}

func (f *fakeAPI) Loans(ctx context.Context, token string) ([]backend.Loan, error) {
	return nil, nil
}

func (f *fakeAPI) Transfer(ctx context.Context, token string, in backend.TransferRequest) (backend.TransferReceipt, error) {
	f.transfers.Add(1)
	f.lastTransfer = in
	if f.transferErr != nil {
		return backend.TransferReceipt{}, f.transferErr
	}
	return backend.TransferReceipt{ID: "t-1", Status: "PENDING", Reference: "REF-1"}, nil
}

func newRouter(t *testing.T, api banking.API, roles ...rbac.Role) (chi.Router, *shared.Session) {
	t.Helper()
	sess := &shared.Session{}
	require.NoError(t, auth.NewStore(sess).Save(auth.Principal{
		Token:       "tok",
		Roles:       roles,
		UserDetails: []auth.UserDetails{{ID: "u-1", Username: "jdoe", FullName: "Jane Doe"}},
	}))
	engine, err := view.NewEngine()
	require.NoError(t, err)
	facade := apierror.New(apierror.FlashNotifier{}, apierror.Options{RedirectOnUnauthenticated: true})
	guard := rbac.Middleware{Sessions: auth.Resolver}
	h := banking.NewHandler(nil, api, engine, view.Pages{Viewer: auth.ViewerFor}, facade, guard)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.Guard())
		h.MountRoutes(r)
	})
	return r, sess
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, target, nil))
	return res
}

func postForm(router http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestDashboardShowsBalancesAndRecentActivity(t *testing.T) {
	api := &fakeAPI{
		accounts: []backend.Account{
			{ID: "a1", Number: "001", Balance: 1000, Currency: "usd"},
			{ID: "a2", Number: "002", Balance: 234.5, Currency: "USD"},
		},
		txns: []backend.Transaction{{ID: "t1", Description: "Coffee", Amount: -3.5, Currency: "USD", Status: "POSTED", PostedAt: time.Now()}},
	}
	router, _ := newRouter(t, api, rbac.RoleCustomer)

	res := get(router, "/dashboard")

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "1,234.50")
	assert.Contains(t, body, "Coffee")
	assert.Contains(t, body, `href="/transfer"`)
	assert.Equal(t, 5, api.lastLimit)
}

func TestDashboardRendersErrorStateOnBackendFailure(t *testing.T) {
	api := &fakeAPI{accountsErr: &backend.StatusError{StatusCode: 503}}
	router, sess := newRouter(t, api, rbac.RoleCustomer)

	res := get(router, "/dashboard")

	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Balances are unavailable right now.")
	assert.Equal(t, 1, strings.Count(body, "The server encountered an error."))
	assert.Empty(t, sess.DrainFlashes())
}

func TestExpiredTokenRedirectsToLogin(t *testing.T) {
	api := &fakeAPI{accountsErr: &backend.StatusError{StatusCode: 401}}
	router, _ := newRouter(t, api, rbac.RoleCustomer)

	res := get(router, "/accounts")

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login?next=%2Faccounts", res.Header().Get("Location"))
}

func TestNetworkFailureKeepsPageUsable(t *testing.T) {
	api := &fakeAPI{txnsErr: &backend.TransportError{Method: "GET", Path: "/transactions", Err: errors.New("connection refused")}}
	router, _ := newRouter(t, api, rbac.RoleCustomer)

	res := get(router, "/transactions?limit=999")

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Transactions could not be loaded.")
	assert.Equal(t, 200, api.lastLimit)
}

func TestCustomerPagesAdmitAnyAuthenticatedRole(t *testing.T) {
	paths := []string{"/dashboard", "/profile", "/accounts", "/transactions", "/cards", "/loans", "/transfer", "/support"}
	for _, role := range []rbac.Role{rbac.RoleAdmin, rbac.RoleBankStaff, rbac.RoleAuditor, rbac.Role("CUSTOMER_USER")} {
		router, _ := newRouter(t, &fakeAPI{}, role)
		for _, path := range paths {
			res := get(router, path)
			assert.Equal(t, http.StatusOK, res.Code, "%s %s", role, path)
			assert.Empty(t, res.Header().Get("Location"), "%s %s", role, path)
		}
	}
}

func TestPagesWithoutPermissionRenderRestrictedState(t *testing.T) {
	router, _ := newRouter(t, &fakeAPI{}, rbac.Role("CUSTOMER_USER"))

	for path, notice := range map[string]string{
		"/accounts":     "Accounts are not available for your role.",
		"/transactions": "Transactions are not available for your role.",
		"/cards":        "Cards are not available for your role.",
		"/loans":        "Loans are not available for your role.",
		"/transfer":     "Transfers are not available for your role.",
	} {
		res := get(router, path)
		require.Equal(t, http.StatusOK, res.Code, path)
		assert.Contains(t, res.Body.String(), notice, path)
	}
	assert.NotContains(t, get(router, "/cards").Body.String(), "1111")
}

func TestTransferSubmissionRequiresPermission(t *testing.T) {
	api := &fakeAPI{}
	router, _ := newRouter(t, api, rbac.RoleBankStaff)

	res := postForm(router, "/transfer", url.Values{"from_account": {"a1"}, "to_account": {"b2"}, "amount": {"10"}, "currency": {"USD"}})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, rbac.UnauthorizedPath, res.Header().Get("Location"))
	assert.Zero(t, api.transfers.Load())
}

func TestTransferValidation(t *testing.T) {
	api := &fakeAPI{accounts: []backend.Account{{ID: "a1", Number: "001", Currency: "USD"}}}
	router, _ := newRouter(t, api, rbac.RoleCustomer)

	res := postForm(router, "/transfer", url.Values{"from_account": {"a1"}, "to_account": {"a1"}, "amount": {"abc"}, "currency": {"usd"}})

	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Enter a valid amount.")
	assert.Contains(t, body, "Choose a different destination account.")
	assert.Zero(t, api.transfers.Load())
}

func TestTransferSurfacesBackendValidationMessage(t *testing.T) {
	api := &fakeAPI{transferErr: &backend.StatusError{StatusCode: 422, Body: []byte(`{"message":"Invalid amount","errors":{"amount":"exceeds daily limit"}}`)}}
	router, _ := newRouter(t, api, rbac.RoleCustomer)

	res := postForm(router, "/transfer", url.Values{"from_account": {"a1"}, "to_account": {"b2"}, "amount": {"5000"}, "currency": {"USD"}})

	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Invalid amount")
	assert.Contains(t, body, "exceeds daily limit")
}

func TestTransferSuccess(t *testing.T) {
	api := &fakeAPI{}
	router, sess := newRouter(t, api, rbac.RoleCustomer)

	res := postForm(router, "/transfer", url.Values{"from_account": {"a1"}, "to_account": {"b2"}, "amount": {"25.10"}, "currency": {"eur"}, "reference": {"rent"}})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/transactions", res.Header().Get("Location"))
	assert.Equal(t, backend.TransferRequest{FromAccount: "a1", ToAccount: "b2", Amount: 25.10, Currency: "EUR", Reference: "rent"}, api.lastTransfer)
	flashes := sess.DrainFlashes()
	require.Len(t, flashes, 1)
	assert.Contains(t, flashes[0].Message, "REF-1")
}

func TestCardsAreMasked(t *testing.T) {
	router, _ := newRouter(t, &fakeAPI{}, rbac.RoleCustomer)

	res := get(router, "/cards")

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "1111")
	assert.NotContains(t, res.Body.String(), "4111111111111111")
}

func TestProfileFallsBackOnlyWhenBackendFails(t *testing.T) {
	router, _ := newRouter(t, &fakeAPI{}, rbac.RoleAuditor)

	res := get(router, "/profile")

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "jane@example.com")
	assert.Contains(t, res.Body.String(), "AUDITOR")
}
