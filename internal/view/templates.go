package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/activos-fijos/activos/internal/credentials"
	"github.com/activos-fijos/activos/internal/rbac"
	"github.com/activos-fijos/activos/internal/shared"
	"github.com/activos-fijos/activos/web"
)

// Options tunes locale-dependent formatting.
type Options struct {
	// Currency is an ISO 4217 code; defaults to CLP.
	Currency string
	// Language is a BCP 47 tag; defaults to es.
	Language string
}

// Engine renders HTML templates. Every page is parsed into its own set on
// top of the shared layouts and partials.
type Engine struct {
	pages map[string]*template.Template
	fmt   formatter
	bufs  sync.Pool
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	User        *credentials.User
	Permissions rbac.Table
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	return NewEngineWithOptions(Options{})
}

// NewEngineWithOptions parses the embedded templates with custom formatting.
func NewEngineWithOptions(opts Options) (*Engine, error) {
	f, err := newFormatter(opts)
	if err != nil {
		return nil, err
	}
	base, err := template.New("root").Funcs(f.funcs()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	files, err := fs.Glob(web.Templates, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		set, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := set.ParseFS(web.Templates, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages["pages/"+path.Base(file)] = set
	}
	return &Engine{pages: pages, fmt: f, bufs: sync.Pool{New: func() any { return new(bytes.Buffer) }}}, nil
}

// Render executes a page through the base layout with status 200.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus executes a page through the base layout. Output is buffered
// so a failing template never leaves a half-written page.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	set, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	if data.Permissions == nil {
		data.Permissions = rbac.Table{}
	}
	buf := e.bufs.Get().(*bytes.Buffer)
	buf.Reset()
	defer e.bufs.Put(buf)

	if err := set.ExecuteTemplate(buf, "base", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Money formats an amount in the configured currency.
func (e *Engine) Money(v float64) string {
	return e.fmt.money(v)
}

type formatter struct {
	printer *message.Printer
	unit    currency.Unit
	scale   int
}

func newFormatter(opts Options) (formatter, error) {
	code := opts.Currency
	if code == "" {
		code = "CLP"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return formatter{}, fmt.Errorf("view: currency %q: %w", code, err)
	}
	tag := language.Spanish
	if opts.Language != "" {
		if tag, err = language.Parse(opts.Language); err != nil {
			return formatter{}, fmt.Errorf("view: language %q: %w", opts.Language, err)
		}
	}
	scale, _ := currency.Standard.Rounding(unit)
	return formatter{printer: message.NewPrinter(tag), unit: unit, scale: scale}, nil
}

func (f formatter) money(v float64) string {
	return f.unit.String() + " " + f.printer.Sprint(number.Decimal(v, number.Scale(f.scale)))
}

func (f formatter) decimal(v float64) string {
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

func (f formatter) funcs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("02/01/2006 15:04")
		},
		"formatDay": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006")
		},
		"inputDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"inputNumber": func(v float64) string {
			if v == 0 {
				return ""
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		},
		"money":  f.money,
		"number": f.decimal,
		"can": func(table rbac.Table, subject, action string) bool {
			return table.Can(subject, action)
		},
		"grants": func(table rbac.Table, subject string) bool {
			return len(table.Actions(subject)) > 0
		},
		"join": strings.Join,
		"add":  func(a, b int) int { return a + b },
	}
}

// Page assembles the TemplateData of the current request: CSRF token,
// pending flash, session user and permission table.
func Page(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Permissions: rbac.TableFromContext(ctx),
		Data:        data,
	}
	if csrf != nil {
		td.CSRFToken = csrf.EnsureToken(sess)
	}
	if sess != nil {
		td.Flash = sess.PopFlash()
	}
	if user, ok := credentials.UserFromContext(ctx); ok {
		td.User = &user
	}
	return td
}
