package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-bank/meridian-web/internal/shared"
	"github.com/meridian-bank/meridian-web/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title            string
	CSRFToken        string
	Flashes          []shared.FlashMessage
	CurrentPath      string
	User             *UserView
	Nav              []NavItem
	SidebarCollapsed bool
	Data             any
}

var printer = message.NewPrinter(language.English)

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"formatMoney": FormatMoney,
		"formatCount": func(n int) string {
			return printer.Sprintf("%d", n)
		},
		"maskNumber": MaskNumber,
		"lower":      strings.ToLower,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// FormatMoney renders an amount with grouping, prefixed by its currency code.
func FormatMoney(amount float64, currency string) string {
	formatted := printer.Sprintf("%.2f", amount)
	if currency == "" {
		return formatted
	}
	return strings.ToUpper(currency) + " " + formatted
}

// MaskNumber keeps the last four characters of a card or account number.
func MaskNumber(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) <= 4 {
		return number
	}
	return "•••• " + number[len(number)-4:]
}
