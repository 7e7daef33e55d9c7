// Package templates renders the HTML fragments pushed over Datastar SSE:
// the legend, the attribute panel and the chapter list.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"os"
	"sync"
)

//go:embed fragments/*.html
var builtin embed.FS

var funcMap = template.FuncMap{
	// css marks a legend swatch as a trusted CSS color value.
	"css": func(s string) template.CSS { return template.CSS(s) },
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	mu        sync.RWMutex
	templates *template.Template
}

// New parses the built-in fragments.
func New() (*Renderer, error) {
	sub, err := fs.Sub(builtin, "fragments")
	if err != nil {
		return nil, err
	}
	return parse(sub)
}

// NewFromDir parses *.html fragments from dir, for customized themes.
func NewFromDir(dir string) (*Renderer, error) {
	return parse(os.DirFS(dir))
}

func parse(fsys fs.FS) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, "*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
