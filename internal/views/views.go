// Package views renders the shell's pages with html/template. Every page is
// the shared layout plus one template defining "title" and "content".
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"

	"github.com/sisbarc/camshell/internal/routes"
)

//go:embed templates/*.html
var embedded embed.FS

// Page names.
const (
	PageHome     = "home"
	PageMonitor  = "monitor"
	PageAbout    = "about"
	PageNotFound = "notfound"
	PageError    = "error"
)

// NavLink is one entry in the layout's navigation bar.
type NavLink struct {
	Name   string
	Href   string
	Active bool
}

// PageData is passed to every template.
type PageData struct {
	Base      string
	APIBase   string
	Route     string
	Path      string
	Nav       []NavLink
	Version   string
	RequestID string

	// Set only on error pages.
	Status int
	Error  string
}

// Page is a parsed, ready-to-execute view.
type Page struct {
	name string
	tmpl *template.Template
}

// Name returns the template name the page was parsed from.
func (p *Page) Name() string {
	return p.name
}

// Render writes the full document for the page.
func (p *Page) Render(w io.Writer, data any) error {
	return p.tmpl.ExecuteTemplate(w, "layout", data)
}

// Set parses pages from a template filesystem. The layout is parsed once;
// each page clones it.
type Set struct {
	fsys   fs.FS
	layout *template.Template
}

// New returns a Set reading templates from fsys, or from the embedded
// templates when fsys is nil. fsys must contain a templates/ directory.
func New(fsys fs.FS) (*Set, error) {
	if fsys == nil {
		fsys = embedded
	}
	layout, err := template.ParseFS(fsys, path.Join("templates", "layout.html"))
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}
	return &Set{fsys: fsys, layout: layout}, nil
}

// Page parses the named page against the layout.
func (s *Set) Page(name string) (*Page, error) {
	t, err := s.layout.Clone()
	if err != nil {
		return nil, fmt.Errorf("cloning layout for %s: %w", name, err)
	}
	t, err = t.ParseFS(s.fsys, path.Join("templates", name+".html"))
	if err != nil {
		return nil, fmt.Errorf("parsing page %s: %w", name, err)
	}
	return &Page{name: name, tmpl: t}, nil
}

// Loader returns a routes.Loader that parses the named page when called.
func (s *Set) Loader(name string) routes.Loader {
	return func(ctx context.Context) (routes.View, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.Page(name)
	}
}

// Declared returns the shell's route table entries in order: Monitor and
// Home are parsed now, About is parsed on first navigation.
func Declared(s *Set) ([]routes.Route, error) {
	monitor, err := s.Page(PageMonitor)
	if err != nil {
		return nil, err
	}
	home, err := s.Page(PageHome)
	if err != nil {
		return nil, err
	}
	return []routes.Route{
		{Path: "/monitor", Name: "Monitor", Component: routes.Eager(monitor)},
		{Path: "/about", Name: "About", Component: routes.Lazy(s.Loader(PageAbout))},
		{Path: "/", Name: "Home", Component: routes.Eager(home)},
	}, nil
}

// Nav builds navigation links for every route in t, marking active.
func Nav(t *routes.Table, active string) []NavLink {
	rs := t.Routes()
	links := make([]NavLink, 0, len(rs))
	for _, r := range rs {
		href, _ := t.Href(r.Name)
		links = append(links, NavLink{Name: r.Name, Href: href, Active: r.Name == active})
	}
	return links
}
