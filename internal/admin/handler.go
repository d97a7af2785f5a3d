package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-bank/meridian-web/internal/apierror"
	"github.com/meridian-bank/meridian-web/internal/auth"
	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/platform/httpx"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
)

// API is the administrative slice of the banking backend.
type API interface {
	MetricsFetcher
	Me(ctx context.Context, token string) (backend.AdminProfile, error)
	DashboardCustomers(ctx context.Context, token string) ([]backend.CustomerSummary, error)
	DashboardTransactions(ctx context.Context, token string) ([]backend.TransactionSummary, error)
	FailedTransactions(ctx context.Context, token string) ([]backend.TransactionSummary, error)
	ListUsers(ctx context.Context, token string, page, size int) (backend.UserPage, error)
	CreateUser(ctx context.Context, token string, in backend.NewUser) (backend.User, error)
	LockUser(ctx context.Context, token, id string) error
	UnlockUser(ctx context.Context, token, id string) error
	ForcePasswordReset(ctx context.Context, token, id string) error
}

const usersPerPage = 20

// Handler serves the admin control center.
type Handler struct {
	logger     *slog.Logger
	api        API
	feed       *MetricsFeed
	templates  *view.Engine
	pages      view.Pages
	errors     *apierror.Facade
	pollErrors *apierror.Facade // reports failures in the JSON body only
	guard      rbac.Middleware
	validator  *validator.Validate
}

// NewHandler constructs a Handler. feed may be nil, in which case metrics are
// fetched live with the administrator's token.
func NewHandler(logger *slog.Logger, api API, feed *MetricsFeed, templates *view.Engine, pages view.Pages, errs *apierror.Facade, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		api:        api,
		feed:       feed,
		templates:  templates,
		pages:      pages,
		errors:     errs,
		pollErrors: errs.WithNotifier(nil),
		guard:      guard,
		validator:  validator.New(),
	}
}

// MountRoutes registers the /admin routes. The caller applies the route guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(rbac.PermDashboardMetrics))
		r.Get("/admin/dashboard", h.showDashboard)
		r.Get("/admin/dashboard/metrics.json", h.metricsJSON)
	})
	r.With(h.guard.RequireAny(rbac.PermUsersView)).Get("/admin/users", h.listUsers)
	r.With(h.guard.RequireAny(rbac.PermUsersCreate)).Post("/admin/users", h.createUser)
	r.With(h.guard.RequireAny(rbac.PermUsersLock)).Post("/admin/users/{id}/lock", h.userAction(actionLock))
	r.With(h.guard.RequireAny(rbac.PermUsersUnlock)).Post("/admin/users/{id}/unlock", h.userAction(actionUnlock))
	r.With(h.guard.RequireAny(rbac.PermUsersPasswordReset)).Post("/admin/users/{id}/reset-password", h.userAction(actionReset))
}

type dashboardData struct {
	Profile       *backend.AdminProfile
	Metrics       *MetricsSnapshot
	Customers     []backend.CustomerSummary
	Transactions  []backend.TransactionSummary
	Failed        []backend.TransactionSummary
	MetricsFailed bool
	WidgetsFailed []string
	PollSeconds   int
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	token := auth.FromRequest(r).Token()
	ctx := r.Context()
	data := dashboardData{}
	if h.feed != nil {
		data.PollSeconds = int(h.feed.poller.Interval() / time.Second)
	}

	var (
		g                                            errgroup.Group
		profileErr, metricsErr, custErr, txErr, fErr error
	)
	g.Go(func() error {
		p, err := h.api.Me(ctx, token)
		if err == nil {
			data.Profile = &p
		}
		profileErr = err
		return nil
	})
	g.Go(func() error {
		snap, err := h.currentMetrics(ctx, token)
		if err == nil {
			data.Metrics = &snap
		}
		metricsErr = err
		return nil
	})
	g.Go(func() error {
		data.Customers, custErr = h.api.DashboardCustomers(ctx, token)
		return nil
	})
	g.Go(func() error {
		data.Transactions, txErr = h.api.DashboardTransactions(ctx, token)
		return nil
	})
	g.Go(func() error {
		data.Failed, fErr = h.api.FailedTransactions(ctx, token)
		return nil
	})
	_ = g.Wait()

	widgets := []struct {
		name string
		err  error
	}{
		{"profile", profileErr},
		{"metrics", metricsErr},
		{"customers", custErr},
		{"transactions", txErr},
		{"failed", fErr},
	}
	for _, wg := range widgets {
		if wg.err == nil {
			continue
		}
		if h.errors.Handle(ctx, wg.err).Redirect(w, r) {
			return
		}
		data.WidgetsFailed = append(data.WidgetsFailed, wg.name)
	}
	data.MetricsFailed = metricsErr != nil
	h.render(w, r, http.StatusOK, "pages/admin_dashboard.html", "Admin dashboard", data)
}

func (h *Handler) currentMetrics(ctx context.Context, token string) (MetricsSnapshot, error) {
	if snap, ok := h.feed.Current(ctx); ok {
		return snap, nil
	}
	m, err := h.api.DashboardMetrics(ctx, token)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	return MetricsSnapshot{Metrics: m, FetchedAt: time.Now(), Source: SourceLive}, nil
}

func (h *Handler) metricsJSON(w http.ResponseWriter, r *http.Request) {
	snap, err := h.currentMetrics(r.Context(), auth.FromRequest(r).Token())
	if err != nil {
		out := h.pollErrors.Handle(r.Context(), err)
		status := http.StatusBadGateway
		if out.Err.Kind() == apierror.KindAuthenticationRequired {
			status = http.StatusUnauthorized
		}
		httpx.Error(w, status, out.Notification.Message, out.Err.Kind().String())
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

type usersData struct {
	Users      []backend.User
	Pagination shared.Pagination
	Failed     bool
	Form       userForm
	Errors     map[string]string
	Roles      []roleOption
	CanCreate  bool
	CanLock    bool
	CanUnlock  bool
	CanReset   bool
}

type roleOption struct {
	Value    string
	Label    string
	Selected bool
}

type userForm struct {
	Username string   `validate:"required,min=3,max=64,alphanum"`
	Email    string   `validate:"required,email,max=254"`
	FullName string   `validate:"required,max=128"`
	Roles    []string `validate:"required,min=1,dive,oneof=CUSTOMER BANK_STAFF ADMIN AUDITOR"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, userForm{}, nil)
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, form userForm, errs map[string]string) {
	st := auth.FromRequest(r)
	page, size := shared.PageParams(r.URL.Query(), usersPerPage)
	data := usersData{Form: form, Errors: errs, Roles: roleOptions(form.Roles)}
	roles := st.Roles()
	data.CanCreate = rbac.AnyHasPermission(roles, rbac.PermUsersCreate)
	data.CanLock = rbac.AnyHasPermission(roles, rbac.PermUsersLock)
	data.CanUnlock = rbac.AnyHasPermission(roles, rbac.PermUsersUnlock)
	data.CanReset = rbac.AnyHasPermission(roles, rbac.PermUsersPasswordReset)

	result, err := h.api.ListUsers(r.Context(), st.Token(), page, size)
	if err != nil {
		if h.errors.Handle(r.Context(), err).Redirect(w, r) {
			return
		}
		data.Failed = true
	}
	data.Users = result.Items
	data.Pagination = shared.NewPagination(page, size, result.Total)
	h.render(w, r, status, "pages/admin_users.html", "Users", data)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := userForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
	}
	for _, raw := range r.PostForm["roles"] {
		if role := rbac.ParseRole(raw); role != "" {
			form.Roles = append(form.Roles, role.String())
		}
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs[strings.SplitN(fe.Field(), "[", 2)[0]] = userMessage(fe)
			}
		}
	}
	if len(errs) > 0 {
		h.renderUsers(w, r, http.StatusUnprocessableEntity, form, errs)
		return
	}

	user, err := h.api.CreateUser(r.Context(), auth.FromRequest(r).Token(), backend.NewUser{
		Username: form.Username,
		Email:    form.Email,
		FullName: form.FullName,
		Roles:    form.Roles,
	})
	if err != nil {
		out := h.errors.Handle(r.Context(), err)
		if out.RedirectForm(w, r) {
			return
		}
		var invalid apierror.ValidationFailed
		if errors.As(out.Err, &invalid) {
			for field, msg := range invalid.Fields {
				errs[userField(field)] = msg
			}
		}
		h.renderUsers(w, r, http.StatusUnprocessableEntity, form, errs)
		return
	}
	flash(r, shared.FlashSuccess, "User "+user.Username+" created.")
	h.logger.Info("user created", slog.String("id", user.ID), slog.String("username", user.Username))
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

type userActionKind int

const (
	actionLock userActionKind = iota
	actionUnlock
	actionReset
)

func (h *Handler) userAction(kind userActionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		token := auth.FromRequest(r).Token()
		var (
			err  error
			done string
		)
		switch kind {
		case actionLock:
			err, done = h.api.LockUser(r.Context(), token, id), "User locked."
		case actionUnlock:
			err, done = h.api.UnlockUser(r.Context(), token, id), "User unlocked."
		case actionReset:
			err, done = h.api.ForcePasswordReset(r.Context(), token, id), "The user must choose a new password at next sign-in."
		}
		if err != nil {
			if h.errors.Handle(r.Context(), err).Redirect(w, r) {
				return
			}
		} else {
			flash(r, shared.FlashSuccess, done)
			h.logger.Info("user action", slog.String("id", id), slog.Int("action", int(kind)))
		}
		http.Redirect(w, r, backToUsers(r), http.StatusSeeOther)
	}
}

func backToUsers(r *http.Request) string {
	if page, err := strconv.Atoi(r.FormValue("page")); err == nil && page > 1 {
		return "/admin/users?page=" + strconv.Itoa(page)
	}
	return "/admin/users"
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := h.pages.Data(r, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
	}
}

func flash(r *http.Request, kind, msg string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
	}
}

func roleOptions(selected []string) []roleOption {
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	var out []roleOption
	for _, role := range rbac.Roles() {
		if !rbac.CanLoginToUI(role) {
			continue
		}
		md, _ := rbac.Metadata(role)
		out = append(out, roleOption{Value: role.String(), Label: md.DisplayName, Selected: chosen[role.String()]})
	}
	return out
}

func userField(field string) string {
	switch strings.ToLower(field) {
	case "username":
		return "Username"
	case "email":
		return "Email"
	case "fullname", "full_name":
		return "FullName"
	case "roles":
		return "Roles"
	default:
		return field
	}
}

func userMessage(fe validator.FieldError) string {
	if fe.Field() == "Roles" {
		return "Choose at least one role."
	}
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "alphanum":
		return "Use letters and digits only."
	case "min":
		return "This value is too short."
	case "max":
		return "This value is too long."
	case "oneof":
		return "Choose a supported role."
	default:
		return "This value is invalid."
	}
}
