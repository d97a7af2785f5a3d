package mappings

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-bank/meridian-web/internal/apierror"
	"github.com/meridian-bank/meridian-web/internal/auth"
	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
)

// API is the mapping slice of the banking backend.
type API interface {
	ListMappings(ctx context.Context, token string) ([]backend.Mapping, error)
	MappingsForUser(ctx context.Context, token, userID string) ([]backend.Mapping, error)
	CreateMapping(ctx context.Context, token string, in backend.NewMapping) (backend.Mapping, error)
}

var relationships = []string{"OWNER", "JOINT", "AUTHORIZED"}

// Handler serves the user to customer mapping pages.
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

// MountRoutes registers the /mappings routes. The caller applies the route guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(rbac.PermMappingsView)).Get("/mappings", h.list)
	r.With(h.guard.RequireAny(rbac.PermMappingsManage)).Post("/mappings", h.create)
}

type mappingForm struct {
	UserID       string `validate:"required,max=64"`
	CustomerID   string `validate:"required,max=64"`
	Relationship string `validate:"required,oneof=OWNER JOINT AUTHORIZED"`
}

type listData struct {
	Mappings      []backend.Mapping
	Failed        bool
	UserFilter    string
	Form          mappingForm
	Errors        map[string]string
	Relationships []string
	CanManage     bool
}

// list shows every mapping, or only those of one user when ?user= is set.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, http.StatusOK, mappingForm{Relationship: relationships[0]}, nil)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, status int, form mappingForm, errs map[string]string) {
	st := auth.FromRequest(r)
	data := listData{
		UserFilter:    strings.TrimSpace(r.URL.Query().Get("user")),
		Form:          form,
		Errors:        errs,
		Relationships: relationships,
		CanManage:     rbac.AnyHasPermission(st.Roles(), rbac.PermMappingsManage),
	}
	var (
		mappings []backend.Mapping
		err      error
	)
	if data.UserFilter != "" {
		mappings, err = h.api.MappingsForUser(r.Context(), st.Token(), data.UserFilter)
	} else {
		mappings, err = h.api.ListMappings(r.Context(), st.Token())
	}
	if err != nil {
		if h.errors.Handle(r.Context(), err).Redirect(w, r) {
			return
		}
		data.Failed = true
	}
	data.Mappings = mappings
	h.render(w, r, status, "pages/mappings.html", "Customer mappings", data)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := mappingForm{
		UserID:       strings.TrimSpace(r.PostFormValue("user_id")),
		CustomerID:   strings.TrimSpace(r.PostFormValue("customer_id")),
		Relationship: strings.ToUpper(strings.TrimSpace(r.PostFormValue("relationship"))),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs[fe.Field()] = formMessage(fe)
			}
		}
	}
	if len(errs) > 0 {
		h.renderList(w, r, http.StatusUnprocessableEntity, form, errs)
		return
	}

	m, err := h.api.CreateMapping(r.Context(), auth.FromRequest(r).Token(), backend.NewMapping(form))
	if err != nil {
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
		h.renderList(w, r, http.StatusUnprocessableEntity, form, errs)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Customer " + m.CustomerID + " linked to user " + m.UserID + "."})
	}
	h.logger.Info("mapping created", slog.String("id", m.ID), slog.String("user", m.UserID), slog.String("customer", m.CustomerID))
	http.Redirect(w, r, "/mappings?user="+url.QueryEscape(form.UserID), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := h.pages.Data(r, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
	}
}

func formField(field string) string {
	switch strings.ToLower(field) {
	case "userid", "user_id":
		return "UserID"
	case "customerid", "customer_id":
		return "CustomerID"
	case "relationship":
		return "Relationship"
	default:
		return field
	}
}

func formMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return "This value is too long."
	case "oneof":
		return "Choose one of the listed relationships."
	default:
		return "This value is invalid."
	}
}
