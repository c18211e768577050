// Package server serves the LEGO Coder page, the per-session websocket and
// the REST API.
package server

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/assets"
	"github.com/livetemplate/legocoder/internal/codegen"
	"github.com/livetemplate/legocoder/internal/config"
	"github.com/livetemplate/legocoder/internal/guide"
	"github.com/livetemplate/legocoder/internal/logging"
	"github.com/livetemplate/legocoder/internal/palette"
	"github.com/livetemplate/legocoder/internal/storage"
)

// Options configures a Server.
type Options struct {
	Config  *config.Config
	Store   storage.KV
	Palette *palette.Palette
	Logger  *zap.Logger
	Now     func() time.Time
}

// Server is the LEGO Coder HTTP server.
type Server struct {
	cfg     *config.Config
	log     *zap.Logger
	store   storage.KV
	now     func() time.Time
	gen     *codegen.Generator
	guide   *guide.Renderer
	palette atomic.Pointer[palette.Palette]

	shell       []byte
	appTemplate []byte

	handler     http.Handler
	limiterDone <-chan struct{}

	connMu      sync.RWMutex
	connections map[*connection]struct{}
}

// New creates a server. ctx bounds background work started by middleware;
// cancel it, then call Close, when shutting down.
func New(ctx context.Context, opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	pal := opts.Palette
	if pal == nil {
		pal = palette.Default()
	}

	shell, err := renderShell(cfg.Title)
	if err != nil {
		return nil, err
	}
	app, err := assets.AppTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to load app template: %w", err)
	}

	s := &Server{
		cfg:         cfg,
		log:         logging.OrNop(opts.Logger),
		store:       opts.Store,
		now:         now,
		gen:         codegen.New(now),
		guide:       guide.New(),
		shell:       shell,
		appTemplate: app,
		connections: make(map[*connection]struct{}),
	}
	s.palette.Store(pal)
	s.handler = s.routes(ctx)
	return s, nil
}

func renderShell(title string) ([]byte, error) {
	src, err := assets.PageShell()
	if err != nil {
		return nil, fmt.Errorf("failed to load page shell: %w", err)
	}
	tmpl, err := template.New("page").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page shell: %w", err)
	}
	if title == "" {
		title = "LEGO Coder"
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Title string }{title}); err != nil {
		return nil, fmt.Errorf("failed to render page shell: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.servePage)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServerFS(assets.ClientFS())))
	mux.HandleFunc("/ws", s.serveWebSocket)

	if s.cfg.IsAPIEnabled() {
		var api http.Handler = NewAPIHandler(s)
		if rps := s.cfg.API.GetRateLimitRPS(); rps > 0 {
			limit, done := RateLimitMiddleware(ctx, rps, s.cfg.API.GetRateLimitBurst(), s.cfg.API.GetRateLimitMaxIPs(), s.log)
			s.limiterDone = done
			api = limit(api)
		}
		api = CORSMiddleware(s.cfg.API.GetCORSOrigins())(api)
		mux.Handle("/api/", api)
	}

	// Anything else goes back to the app.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	return SecurityHeadersMiddleware()(WithCompression(mux))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.shell)
}

// Palette returns the palette offered to new renders.
func (s *Server) Palette() *palette.Palette {
	return s.palette.Load()
}

// SetPalette swaps the palette and re-renders every connected session.
func (s *Server) SetPalette(p *palette.Palette) {
	s.palette.Store(p)
	s.RefreshAll()
}

// RefreshAll re-renders every connected session.
func (s *Server) RefreshAll() {
	s.connMu.RLock()
	conns := make([]*connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.connMu.RUnlock()

	s.log.Debug("refreshing sessions", zap.Int("connections", len(conns)))
	for _, c := range conns {
		c.render()
	}
}

// ConnectionCount returns the number of open websocket sessions.
func (s *Server) ConnectionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

func (s *Server) register(c *connection) {
	s.connMu.Lock()
	s.connections[c] = struct{}{}
	n := len(s.connections)
	s.connMu.Unlock()
	s.log.Debug("websocket connection registered", zap.Int("active", n))
}

func (s *Server) unregister(c *connection) {
	s.connMu.Lock()
	delete(s.connections, c)
	n := len(s.connections)
	s.connMu.Unlock()
	s.log.Debug("websocket connection unregistered", zap.Int("active", n))
}

// WatchPalette reloads the configured palette file on change until ctx is
// done. It returns immediately when hot reload is off.
func (s *Server) WatchPalette(ctx context.Context) error {
	if s.cfg.Palette.File == "" || !s.cfg.Palette.HotReload {
		return nil
	}

	w, err := palette.NewWatcher(s.cfg.Palette.File, s.SetPalette, s.log.Named("palette"))
	if err != nil {
		return fmt.Errorf("failed to watch palette: %w", err)
	}
	s.log.Info("watching palette", zap.String("file", s.cfg.Palette.File))

	go w.Run()
	<-ctx.Done()
	return w.Stop()
}

// Close closes open sessions and releases the guide cache. If a rate
// limiter was started it waits for it, so cancel the ctx given to New first.
func (s *Server) Close() {
	s.connMu.RLock()
	conns := make([]*connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.connMu.RUnlock()

	for _, c := range conns {
		c.close()
	}
	s.guide.Close()
	if s.limiterDone != nil {
		<-s.limiterDone
	}
}

func (s *Server) guideHTML(key string) template.HTML {
	html, err := s.guide.HTML(legocoder.ParsePlatform(key))
	if err != nil {
		s.log.Warn("failed to render guide", zap.String("platform", key), zap.Error(err))
		return ""
	}
	return template.HTML(html)
}
