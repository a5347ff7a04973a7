package frontend

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

//go:embed views/*.html
var templateFS embed.FS

//go:embed views/icon.svg
var assetsFS embed.FS

const layoutFile = "views/layout.html"

var pageNames = []string{
	indexPage,
	loginPage,
	registerPage,
	uploadPage,
	galleryPage,
	postsPage,
	errorPage,
}

// Template renders a page inside the shared layout.
type Template struct {
	templates map[string]*template.Template
}

func newTemplate() (*Template, error) {
	templates := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		parsed, err := template.ParseFS(templateFS, layoutFile, "views/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = parsed
	}
	return &Template{templates: templates}, nil
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
