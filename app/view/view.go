// Package view renders the server-side HTML pages.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/modelboard/webapp/app/entity"
	dto "github.com/modelboard/webapp/app/dto/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pages = []string{
	"index",
	"login",
	"signup",
	"signup_options",
	"signup_expired",
	"dashboard",
	"listing_edit",
	"not_found",
	"error",
}

// Renderer implements echo.Renderer over the embedded templates. Every page
// template is parsed together with the shared layout.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		r.templates[page] = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

type Page struct {
	Title string
}

// LoginPage re-renders the submitted email (never the password) alongside
// field errors.
type LoginPage struct {
	Page
	Email       string
	Errors      dto.FieldErrors
	LoginFailed bool
}

type SignupPage struct {
	Page
	Email  string
	Errors dto.FieldErrors
}

type DashboardPage struct {
	Page
	Me       *entity.User
	Listings []*entity.Listing
}

type ListingEditPage struct {
	Page
	Listing *entity.Listing
	Errors  dto.FieldErrors
}

type ErrorPage struct {
	Page
	Message string
}
