// Package guide renders the per-platform "connect your device" instructions.
package guide

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/cache"
)

//go:embed connect.md
var connectMarkdown string

const cacheTTL = time.Hour

// Renderer turns the connection guide into HTML, caching one copy per platform.
type Renderer struct {
	tmpl  *template.Template
	md    goldmark.Markdown
	cache *cache.MemoryCache[string]
}

// New creates a Renderer. Call Close to release its cache.
func New() *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("connect").Parse(connectMarkdown)),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		cache: cache.NewMemoryCache[string](),
	}
}

// Markdown returns the guide source for p.
func (r *Renderer) Markdown(p legocoder.Platform) (string, error) {
	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, struct {
		Device, Short, Display string
	}{p.DeviceName(), p.ShortName(), p.DisplayName()})
	if err != nil {
		return "", fmt.Errorf("failed to expand guide: %w", err)
	}
	return buf.String(), nil
}

// HTML returns the rendered guide for p.
func (r *Renderer) HTML(p legocoder.Platform) (string, error) {
	return r.cache.GetOrLoad(p.Key(), cacheTTL, func() (string, error) {
		src, err := r.Markdown(p)
		if err != nil {
			return "", err
		}
		var out bytes.Buffer
		if err := r.md.Convert([]byte(src), &out); err != nil {
			return "", fmt.Errorf("failed to render guide: %w", err)
		}
		return out.String(), nil
	})
}

// Close stops the cache cleanup goroutine.
func (r *Renderer) Close() {
	r.cache.Stop()
}
