package reports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-bank/meridian-web/internal/apierror"
	"github.com/meridian-bank/meridian-web/internal/auth"
	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
)

// API is the reporting slice of the banking backend.
type API interface {
	ListReports(ctx context.Context, token string) ([]backend.Report, error)
	GenerateReport(ctx context.Context, token string, in backend.ReportRequest) (backend.Report, error)
	DownloadReport(ctx context.Context, token, id string) (backend.Download, error)
}

// Report types offered by the generate form.
var reportTypes = []string{"TRANSACTIONS", "ACCOUNTS", "CUSTOMERS", "AUDIT"}

// Output formats offered by the generate form.
var reportFormats = []string{"CSV", "PDF", "XLSX"}

const dateLayout = "2006-01-02"

// Handler serves report listing, generation and downloads.
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

// MountRoutes registers the /reports routes. The caller applies the route guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAny(rbac.PermReportsView)).Get("/reports", h.list)
	r.With(h.guard.RequireAny(rbac.PermReportsGenerate)).Post("/reports/generate", h.generate)
	r.With(h.guard.RequireAny(rbac.PermReportsDownload)).Get("/reports/{id}/download", h.download)
}

type generateForm struct {
	Type   string `validate:"required,oneof=TRANSACTIONS ACCOUNTS CUSTOMERS AUDIT"`
	From   string `validate:"required,datetime=2006-01-02"`
	To     string `validate:"required,datetime=2006-01-02"`
	Format string `validate:"required,oneof=CSV PDF XLSX"`
}

type listData struct {
	Reports     []backend.Report
	Failed      bool
	Form        generateForm
	Errors      map[string]string
	Types       []string
	Formats     []string
	CanGenerate bool
	CanDownload bool
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	today := time.Now().Format(dateLayout)
	form := generateForm{Type: reportTypes[0], From: today, To: today, Format: reportFormats[0]}
	h.renderList(w, r, http.StatusOK, form, nil)
}

func (h *Handler) renderList(w http.ResponseWriter, r *http.Request, status int, form generateForm, errs map[string]string) {
	st := auth.FromRequest(r)
	roles := st.Roles()
	data := listData{
		Form:        form,
		Errors:      errs,
		Types:       reportTypes,
		Formats:     reportFormats,
		CanGenerate: rbac.AnyHasPermission(roles, rbac.PermReportsGenerate),
		CanDownload: rbac.AnyHasPermission(roles, rbac.PermReportsDownload),
	}
	reports, err := h.api.ListReports(r.Context(), st.Token())
	if err != nil {
		if h.errors.Handle(r.Context(), err).Redirect(w, r) {
			return
		}
		data.Failed = true
	}
	data.Reports = reports
	h.render(w, r, status, "pages/reports.html", "Reports", data)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := generateForm{
		Type:   strings.ToUpper(strings.TrimSpace(r.PostFormValue("type"))),
		From:   strings.TrimSpace(r.PostFormValue("from")),
		To:     strings.TrimSpace(r.PostFormValue("to")),
		Format: strings.ToUpper(strings.TrimSpace(r.PostFormValue("format"))),
	}
	errs := h.validate(form)
	if len(errs) > 0 {
		h.renderList(w, r, http.StatusUnprocessableEntity, form, errs)
		return
	}

	report, err := h.api.GenerateReport(r.Context(), auth.FromRequest(r).Token(), backend.ReportRequest(form))
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
	name := report.Name
	if name == "" {
		name = strings.ToLower(form.Type) + " report"
	}
	flash(r, shared.FlashSuccess, "Report "+name+" was queued.")
	h.logger.Info("report requested", slog.String("id", report.ID), slog.String("type", form.Type), slog.String("format", form.Format))
	http.Redirect(w, r, "/reports", http.StatusSeeOther)
}

func (h *Handler) validate(form generateForm) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs[fe.Field()] = formMessage(fe)
			}
		}
		return errs
	}
	from, _ := time.Parse(dateLayout, form.From)
	to, _ := time.Parse(dateLayout, form.To)
	if to.Before(from) {
		errs["To"] = "The end date must not be before the start date."
	}
	return errs
}

// download streams the backend file to the browser, keeping its content type
// and file name.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	file, err := h.api.DownloadReport(r.Context(), auth.FromRequest(r).Token(), id)
	if err != nil {
		if h.errors.Handle(r.Context(), err).Redirect(w, r) {
			return
		}
		http.Redirect(w, r, "/reports", http.StatusSeeOther)
		return
	}
	defer file.Body.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	w.Header().Set("Cache-Control", "no-store")
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, file.Body)
	if err != nil {
		h.logger.Warn("report download interrupted", slog.String("id", id), slog.Int64("bytes", n), slog.Any("error", err))
		return
	}
	h.logger.Info("report downloaded", slog.String("id", id), slog.Int64("bytes", n))
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

func formField(field string) string {
	switch strings.ToLower(field) {
	case "type":
		return "Type"
	case "from":
		return "From"
	case "to":
		return "To"
	case "format":
		return "Format"
	default:
		return field
	}
}

func formMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "datetime":
		return "Use the YYYY-MM-DD format."
	case "oneof":
		return "Choose one of the listed options."
	default:
		return "This value is invalid."
	}
}
