// Package page renders the HTML shell of the viewer demo.
package page

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/ethpandaops/specviewer/pkg/config"
	"github.com/ethpandaops/specviewer/pkg/viewer"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html
var templateFS embed.FS

// Option is one entry of the source picker.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// Data is passed to the page template.
type Data struct {
	Title  string
	Intro  template.HTML
	View   viewer.View
	Demos  []Option
	WSPath string
}

// Renderer renders the demo page.
type Renderer struct {
	tmpl   *template.Template
	title  string
	intro  template.HTML
	wsPath string
}

// New parses the page template and renders the configured markdown intro.
func New(cfg config.PageConfig, wsPath string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}

	intro, err := RenderMarkdown(cfg.Intro)
	if err != nil {
		return nil, fmt.Errorf("rendering page intro: %w", err)
	}

	return &Renderer{
		tmpl:   tmpl,
		title:  cfg.Title,
		intro:  intro,
		wsPath: wsPath,
	}, nil
}

// Render writes the page for view. The option matching the view's selected
// source is marked; the default source selects nothing.
func (r *Renderer) Render(w io.Writer, view viewer.View, demos []Option) error {
	options := make([]Option, 0, len(demos))

	for _, d := range demos {
		d.Selected = view.SelectedSource != "" && d.Value == view.SelectedSource
		options = append(options, d)
	}

	return r.tmpl.ExecuteTemplate(w, "index.html", Data{
		Title:  r.title,
		Intro:  r.intro,
		View:   view,
		Demos:  options,
		WSPath: r.wsPath,
	})
}

// RenderMarkdown converts markdown to HTML. Raw HTML in the source is dropped.
func RenderMarkdown(src string) (template.HTML, error) {
	if src == "" {
		return "", nil
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}

	//nolint:gosec // goldmark escapes raw HTML unless WithUnsafe is set.
	return template.HTML(buf.String()), nil
}
