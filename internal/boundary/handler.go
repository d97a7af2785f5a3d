package boundary

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/meridian-bank/meridian-web/internal/rbac"
	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/internal/view"
)

// Recorder counts incidents caught by the boundary.
type Recorder interface {
	ObserveIncident()
}

// Incident describes one caught failure.
type Incident struct {
	ID           string
	At           time.Time
	Path         string
	RequestID    string
	Error        string
	AttemptsLeft int
}

// Report renders the incident as the copyable diagnostic text.
func (i Incident) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s\n", i.ID)
	fmt.Fprintf(&b, "Time: %s\n", i.At.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Path: %s\n", i.Path)
	if i.RequestID != "" {
		fmt.Fprintf(&b, "Request ID: %s\n", i.RequestID)
	}
	fmt.Fprintf(&b, "Error: %s\n", i.Error)
	fmt.Fprintf(&b, "Retries left: %d", i.AttemptsLeft)
	return b.String()
}

type recoveryPage struct {
	Incident      Incident
	Report        string
	CanRetry      bool
	RetryURL      string
	ResetURL      string
	DashboardPath string
	ReloadURL     string
}

// Handler is the top-level error boundary.
type Handler struct {
	logger     *slog.Logger
	templates  *view.Engine
	pages      view.Pages
	maxRetries int
	recorder   Recorder
	now        func() time.Time
}

// NewHandler constructs the boundary.
func NewHandler(logger *slog.Logger, templates *view.Engine, pages view.Pages, maxRetries int, recorder Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Handler{logger: logger, templates: templates, pages: pages, maxRetries: maxRetries, recorder: recorder, now: time.Now}
}

// MountRoutes registers the recovery actions.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/recover/retry", h.handleRetry)
	r.Get("/recover/reset", h.handleReset)
}

// Middleware recovers panics from downstream handlers and renders the recovery
// page instead of a blank error.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.handlePanic(ww, r, rec)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (h *Handler) handlePanic(w middleware.WrapResponseWriter, r *http.Request, rec any) {
	incident := Incident{
		ID:        uuid.NewString(),
		At:        h.now(),
		Path:      r.URL.RequestURI(),
		RequestID: middleware.GetReqID(r.Context()),
		Error:     fmt.Sprint(rec),
	}

	sess := shared.SessionFromContext(r.Context())
	machine := NewMachine(h.maxRetries)
	if sess != nil {
		machine = Load(sess, h.maxRetries)
		machine.Fail()
		machine.Save(sess)
	} else {
		machine.Fail()
	}
	incident.AttemptsLeft = machine.AttemptsLeft()

	h.logger.Error("request panicked",
		slog.String("incident", incident.ID),
		slog.String("path", incident.Path),
		slog.String("request_id", incident.RequestID),
		slog.Any("panic", rec),
	)
	if h.recorder != nil {
		h.recorder.ObserveIncident()
	}

	if w.Status() != 0 {
		// Headers already went out; nothing sensible can be rendered.
		return
	}
	h.render(w, r, incident, machine)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, incident Incident, machine Machine) {
	next := r.URL.RequestURI()
	if !rbac.IsSafeRedirect(next) {
		next = "/"
	}
	td := h.pages.Data(r, "Something went wrong", nil)
	dashboard := "/"
	if td.User != nil {
		dashboard = td.User.DashboardPath
	}
	td.Data = recoveryPage{
		Incident:      incident,
		Report:        incident.Report(),
		CanRetry:      machine.CanRetry(),
		RetryURL:      "/recover/retry?" + url.Values{rbac.NextParam: {next}}.Encode(),
		ResetURL:      "/recover/reset?" + url.Values{rbac.NextParam: {dashboard}}.Encode(),
		DashboardPath: dashboard,
		ReloadURL:     next,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusInternalServerError)
	if h.templates == nil {
		fmt.Fprintf(w, "<pre>%s</pre>", incident.ID)
		return
	}
	if err := h.templates.Render(w, "pages/recovery.html", td); err != nil {
		h.logger.Error("render recovery page", slog.Any("error", err))
	}
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, target(r, "/"), http.StatusSeeOther)
		return
	}
	machine := Load(sess, h.maxRetries)
	if err := machine.Retry(); errors.Is(err, ErrRetriesExhausted) {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashWarning, Message: "No retry attempts left. Return to the dashboard or reload the page."})
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	machine.Save(sess)
	http.Redirect(w, r, target(r, "/"), http.StatusSeeOther)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		machine := Load(sess, h.maxRetries)
		machine.Reset()
		machine.Save(sess)
	}
	http.Redirect(w, r, target(r, "/"), http.StatusSeeOther)
}

func target(r *http.Request, fallback string) string {
	next := r.URL.Query().Get(rbac.NextParam)
	if next == "" || !rbac.IsSafeRedirect(next) {
		return fallback
	}
	return next
}
