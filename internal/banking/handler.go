package banking

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-bank/meridian-web/internal/apierror"
	"github.com/meridian-bank/meridian-web/internal/auth"
	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
)

// API is the customer slice of the banking backend.
type API interface {
	Profile(ctx context.Context, token string) (backend.UserDetails, error)
	Accounts(ctx context.Context, token string) ([]backend.Account, error)
	Transactions(ctx context.Context, token string, limit int) ([]backend.Transaction, error)
	Cards(ctx context.Context, token string) ([]backend.Card, error)
	Loans(ctx context.Context, token string) ([]backend.Loan, error)
	Transfer(ctx context.Context, token string, in backend.TransferRequest) (backend.TransferReceipt, error)
}

const (
	recentTransactions  = 5
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Handler serves the customer pages.
type Handler struct {
	logger    *slog.Logger
	api       API
	templates *view.Engine
	pages     view.Pages
	errors    *apierror.Facade
	guard     rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, api API, templates *view.Engine, pages view.Pages, errs *apierror.Facade, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		api:       api,
		templates: templates,
		pages:     pages,
		errors:    errs,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers customer routes. The caller applies the route guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.showDashboard)
	r.Get("/profile", h.showProfile)
	r.Get("/accounts", h.showAccounts)
	r.Get("/transactions", h.showTransactions)
	r.Get("/cards", h.showCards)
	r.Get("/loans", h.showLoans)
	r.Get("/support", h.showSupport)
	r.Get("/transfer", h.showTransfer)
	r.With(h.guard.RequireAny(rbac.PermTransferInternal)).Post("/transfer", h.submitTransfer)
}

// permitted reports whether any session role holds perm. Pages stay reachable
// for every authenticated role and render a restricted state otherwise.
func permitted(r *http.Request, perm rbac.Permission) bool {
	return rbac.AnyHasPermission(auth.FromRequest(r).Roles(), perm)
}

// Balance is the total held in one currency.
type Balance struct {
	Currency string
	Amount   float64
}

type dashboardData struct {
	Accounts        []backend.Account
	Balances        []Balance
	Recent          []backend.Transaction
	AccountsFailed  bool
	RecentFailed    bool
	CanTransfer     bool
	ShowAccounts    bool
	ShowTransaction bool
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	st := auth.FromRequest(r)
	roles := st.Roles()
	data := dashboardData{
		CanTransfer:     rbac.AnyHasPermission(roles, rbac.PermTransferInternal),
		ShowAccounts:    rbac.AnyHasPermission(roles, rbac.PermBalanceViewOwn),
		ShowTransaction: rbac.AnyHasPermission(roles, rbac.PermTransactionsViewOwn),
	}

	var (
		g                      errgroup.Group
		accountsErr, recentErr error
	)
	if data.ShowAccounts {
		g.Go(func() error {
			data.Accounts, accountsErr = h.api.Accounts(r.Context(), st.Token())
			return nil
		})
	}
	if data.ShowTransaction {
		g.Go(func() error {
			data.Recent, recentErr = h.api.Transactions(r.Context(), st.Token(), recentTransactions)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range []error{accountsErr, recentErr} {
		if err == nil {
			continue
		}
		if h.errors.Handle(r.Context(), err).Redirect(w, r) {
			return
		}
	}
	data.AccountsFailed = accountsErr != nil
	data.RecentFailed = recentErr != nil
	data.Balances = totals(data.Accounts)
	h.render(w, r, http.StatusOK, "pages/dashboard.html", "Dashboard", data)
}

type profileData struct {
	Profile backend.UserDetails
	Roles   []string
	Stale   bool
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	st := auth.FromRequest(r)
	data := profileData{}
	for _, role := range st.Roles() {
		data.Roles = append(data.Roles, role.String())
	}
	cached, hasCached := st.Profile()

	profile, err := h.api.Profile(r.Context(), st.Token())
	if err != nil {
		if h.errors.Handle(r.Context(), err).Redirect(w, r) {
			return
		}
		profile = cached
		data.Stale = hasCached
	}
	data.Profile = profile
	h.render(w, r, http.StatusOK, "pages/profile.html", "Profile", data)
}

type listData[T any] struct {
	Items      []T
	Failed     bool
	Restricted bool
	Limit      int
}

func (h *Handler) showAccounts(w http.ResponseWriter, r *http.Request) {
	st := auth.FromRequest(r)
	if !permitted(r, rbac.PermBalanceViewOwn) {
		h.render(w, r, http.StatusOK, "pages/accounts.html", "Accounts", listData[backend.Account]{Restricted: true})
		return
	}
	items, err := h.api.Accounts(r.Context(), st.Token())
	if h.failed(w, r, err) {
		return
	}
	h.render(w, r, http.StatusOK, "pages/accounts.html", "Accounts", listData[backend.Account]{Items: items, Failed: err != nil})
}

func (h *Handler) showTransactions(w http.ResponseWriter, r *http.Request) {
	st := auth.FromRequest(r)
	if !permitted(r, rbac.PermTransactionsViewOwn) {
		h.render(w, r, http.StatusOK, "pages/transactions.html", "Transactions", listData[backend.Transaction]{Restricted: true})
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = min(v, maxHistoryLimit)
		}
	}
	items, err := h.api.Transactions(r.Context(), st.Token(), limit)
	if h.failed(w, r, err) {
		return
	}
	h.render(w, r, http.StatusOK, "pages/transactions.html", "Transactions", listData[backend.Transaction]{Items: items, Failed: err != nil, Limit: limit})
}

func (h *Handler) showCards(w http.ResponseWriter, r *http.Request) {
	st := auth.FromRequest(r)
	if !permitted(r, rbac.PermCardsViewOwn) {
		h.render(w, r, http.StatusOK, "pages/cards.html", "Cards", listData[backend.Card]{Restricted: true})
		return
	}
	items, err := h.api.Cards(r.Context(), st.Token())
	if h.failed(w, r, err) {
		return
	}
	h.render(w, r, http.StatusOK, "pages/cards.html", "Cards", listData[backend.Card]{Items: items, Failed: err != nil})
}

func (h *Handler) showLoans(w http.ResponseWriter, r *http.Request) {
	st := auth.FromRequest(r)
	if !permitted(r, rbac.PermLoansViewOwn) {
		h.render(w, r, http.StatusOK, "pages/loans.html", "Loans", listData[backend.Loan]{Restricted: true})
		return
	}
	items, err := h.api.Loans(r.Context(), st.Token())
	if h.failed(w, r, err) {
		return
	}
	h.render(w, r, http.StatusOK, "pages/loans.html", "Loans", listData[backend.Loan]{Items: items, Failed: err != nil})
}

func (h *Handler) showSupport(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/support.html", "Support", nil)
}

type transferForm struct {
	FromAccount string  `validate:"required,max=64"`
	ToAccount   string  `validate:"required,max=64,nefield=FromAccount"`
	Amount      float64 `validate:"gt=0"`
	Currency    string  `validate:"required,len=3,alpha"`
	Reference   string  `validate:"max=140"`
}

type transferData struct {
	Form       transferForm
	Accounts   []backend.Account
	Errors     map[string]string
	Restricted bool
}

func (h *Handler) showTransfer(w http.ResponseWriter, r *http.Request) {
	st := auth.FromRequest(r)
	if !permitted(r, rbac.PermTransferInternal) {
		h.render(w, r, http.StatusOK, "pages/transfer.html", "Transfer", transferData{Restricted: true})
		return
	}
	accounts, err := h.api.Accounts(r.Context(), st.Token())
	if h.failed(w, r, err) {
		return
	}
	form := transferForm{Currency: "USD"}
	if len(accounts) > 0 {
		form.FromAccount = accounts[0].ID
		form.Currency = accounts[0].Currency
	}
	h.render(w, r, http.StatusOK, "pages/transfer.html", "Transfer", transferData{Form: form, Accounts: accounts})
}

func (h *Handler) submitTransfer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	st := auth.FromRequest(r)
	form := transferForm{
		FromAccount: strings.TrimSpace(r.PostFormValue("from_account")),
		ToAccount:   strings.TrimSpace(r.PostFormValue("to_account")),
		Currency:    strings.ToUpper(strings.TrimSpace(r.PostFormValue("currency"))),
		Reference:   strings.TrimSpace(r.PostFormValue("reference")),
	}
	errs := make(map[string]string)
	amount, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("amount")), 64)
	if err != nil {
		errs["Amount"] = "Enter a valid amount."
	}
	form.Amount = amount
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if _, seen := errs[fe.Field()]; !seen {
					errs[fe.Field()] = transferMessage(fe)
				}
			}
		}
	}

	if len(errs) == 0 {
		receipt, err := h.api.Transfer(r.Context(), st.Token(), backend.TransferRequest{
			FromAccount: form.FromAccount,
			ToAccount:   form.ToAccount,
			Amount:      form.Amount,
			Currency:    form.Currency,
			Reference:   form.Reference,
		})
		if err == nil {
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Transfer submitted. Reference " + receipt.Reference + " is " + strings.ToLower(receipt.Status) + "."})
			}
			h.logger.Info("transfer submitted", slog.String("id", receipt.ID), slog.String("status", receipt.Status))
			http.Redirect(w, r, "/transactions", http.StatusSeeOther)
			return
		}
		out := h.errors.Handle(r.Context(), err)
		if out.RedirectForm(w, r) {
			return
		}
		var invalid apierror.ValidationFailed
		if errors.As(out.Err, &invalid) {
			for field, msg := range invalid.Fields {
				errs[formField(field)] = msg
			}
		}
	}

	accounts, accErr := h.api.Accounts(r.Context(), st.Token())
	if accErr != nil {
		h.logger.Warn("reload accounts for transfer form", slog.Any("error", accErr))
	}
	h.render(w, r, http.StatusUnprocessableEntity, "pages/transfer.html", "Transfer", transferData{Form: form, Accounts: accounts, Errors: errs})
}

// failed routes err through the facade. It reports true when the response
// has already been written.
func (h *Handler) failed(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}
	return h.errors.Handle(r.Context(), err).Redirect(w, r)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := h.pages.Data(r, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
	}
}

func totals(accounts []backend.Account) []Balance {
	sums := map[string]float64{}
	for _, a := range accounts {
		sums[strings.ToUpper(a.Currency)] += a.Balance
	}
	out := make([]Balance, 0, len(sums))
	for cur, amount := range sums {
		out = append(out, Balance{Currency: cur, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// formField maps backend payload field names onto form fields.
func formField(field string) string {
	switch strings.ToLower(field) {
	case "fromaccount", "from_account":
		return "FromAccount"
	case "toaccount", "to_account":
		return "ToAccount"
	case "amount":
		return "Amount"
	case "currency":
		return "Currency"
	case "reference":
		return "Reference"
	default:
		return field
	}
}

func transferMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "nefield":
		return "Choose a different destination account."
	case "gt":
		return "Amount must be greater than zero."
	case "len", "alpha":
		return "Use a three-letter currency code."
	case "max":
		return "This value is too long."
	default:
		return "This value is invalid."
	}
}
