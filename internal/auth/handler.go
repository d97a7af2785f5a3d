package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-bank/meridian-web/internal/apierror"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	pages          view.Pages
	sessionManager *shared.SessionManager
	errors         *apierror.Facade
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, errs *apierror.Facade) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		pages:          view.Pages{CSRF: csrf, Viewer: ViewerFor},
		sessionManager: sessions,
		errors:         errs,
		validator:      validator.New(),
	}
}

// ViewerFor exposes the request's store to the layout.
func ViewerFor(r *http.Request) view.Viewer {
	if st := FromRequest(r); st != nil {
		return st
	}
	return nil
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

// MountPreferenceRoutes registers per-principal UI preferences.
func (h *Handler) MountPreferenceRoutes(r chi.Router) {
	r.Post("/preferences/sidebar", h.handleSidebar)
}

type loginForm struct {
	Username string `validate:"required,max=128"`
	Password string `validate:"required,max=256"`
}

type loginPageData struct {
	Form   loginForm
	Next   string
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get(rbac.NextParam)
	if st := FromRequest(r); st != nil && st.IsAuthenticated() {
		http.Redirect(w, r, h.destination(next, st.Roles()), http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{Next: safeNext(next)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	next := safeNext(r.PostFormValue(rbac.NextParam))
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		}
	}
	form.Password = ""
	if len(errs) > 0 {
		h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: form, Next: next, Errors: errs})
		return
	}

	principal, err := h.service.Authenticate(r.Context(), form.Username, r.PostFormValue("password"))
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		errs["general"] = "Invalid username or password."
		h.renderLogin(w, r, http.StatusUnauthorized, loginPageData{Form: form, Next: next, Errors: errs})
		return
	case errors.Is(err, ErrUILoginNotPermitted):
		errs["general"] = "This account cannot sign in to the web interface."
		h.renderLogin(w, r, http.StatusForbidden, loginPageData{Form: form, Next: next, Errors: errs})
		return
	case err != nil:
		h.errors.Handle(r.Context(), err)
		h.renderLogin(w, r, http.StatusBadGateway, loginPageData{Form: form, Next: next})
		return
	}

	store := NewStore(sess)
	if err := store.Save(principal); err != nil {
		h.logger.Error("persist principal", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Rotate(sess)
	sess.Delete(shared.CSRFSessionKey)
	greeting := "Welcome back"
	if name := principal.DisplayName(); name != "" {
		greeting += ", " + name
	}
	sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: greeting + "."})
	h.logger.Info("principal signed in", slog.String("user", form.Username), slog.Int("roles", len(principal.Roles)))
	http.Redirect(w, r, h.destination(next, principal.Roles), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		store := NewStore(sess)
		if err := h.service.Logout(r.Context(), store.Principal()); err != nil {
			h.logger.Warn("backend logout", slog.Any("error", err))
		}
		store.Clear()
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
}

func (h *Handler) handleSidebar(w http.ResponseWriter, r *http.Request) {
	st := FromRequest(r)
	if st == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	collapsed := !st.SidebarCollapsed()
	if v := r.FormValue("collapsed"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		collapsed = parsed
	}
	st.SetSidebarCollapsed(collapsed)
	if r.Header.Get(shared.CSRFHeader) != "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, h.destination(r.FormValue(rbac.NextParam), st.Roles()), http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	viewData := h.pages.Data(r, "Sign in", data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func (h *Handler) destination(next string, roles []rbac.Role) string {
	if next = safeNext(next); next != "" {
		return next
	}
	return rbac.DashboardPathFor(roles)
}

func safeNext(next string) string {
	if next == "" || next == rbac.LoginPath || !rbac.IsSafeRedirect(next) {
		return ""
	}
	return next
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required."
	case "max":
		return fe.Field() + " is too long."
	default:
		return fe.Field() + " is invalid."
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
