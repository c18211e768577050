package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/livetemplate/legocoder/internal/config"
	"github.com/livetemplate/legocoder/internal/logging"
	"github.com/livetemplate/legocoder/internal/palette"
	"github.com/livetemplate/legocoder/internal/server"
	"github.com/livetemplate/legocoder/internal/storage"
)

// App runs a LEGO Coder server on a loopback port and points the webview
// at it. The webview's asset server cannot carry websockets, so the page is
// loaded from the local listener instead.
type App struct {
	ctx        context.Context
	log        *zap.Logger
	cfg        *config.Config
	srvCancel  context.CancelFunc
	server     *server.Server
	store      storage.KV
	httpServer *http.Server
	serverURL  string
	mu         sync.RWMutex
}

// NewApp creates a new App application struct.
func NewApp() *App {
	log, _ := logging.New(false)
	return &App{log: logging.OrNop(log)}
}

// startup is called when the app starts.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	cfg, err := config.Load(filepath.Join(dataDir(), config.FileName))
	if err != nil {
		a.log.Error("failed to load config, using defaults", zap.Error(err))
		cfg = config.DefaultConfig()
	}
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "sqlite" {
		if cfg.Storage.DSN == "" || cfg.Storage.DSN == config.DefaultConfig().Storage.DSN {
			cfg.Storage.DSN = filepath.Join(dataDir(), "legocoder.db")
		}
	}
	a.cfg = cfg

	if err := a.startServer(); err != nil {
		a.log.Error("failed to start server", zap.Error(err))
		runtime.MessageDialog(ctx, runtime.MessageDialogOptions{
			Type:    runtime.ErrorDialog,
			Title:   "LEGO Coder",
			Message: err.Error(),
		})
	}
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	a.stopServer()
	_ = a.log.Sync()
}

// startServer opens storage and serves on a free loopback port.
func (a *App) startServer() error {
	a.stopServer()

	if err := os.MkdirAll(dataDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.Open(a.ctx, a.cfg.Storage.Driver, a.cfg.Storage.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	pal, err := palette.Load(a.cfg.Palette.File)
	if err != nil {
		a.log.Warn("failed to load palette, using built-in", zap.Error(err))
		pal = palette.Default()
	}

	srvCtx, cancel := context.WithCancel(context.Background())
	srv, err := server.New(srvCtx, server.Options{
		Config:  a.cfg,
		Store:   store,
		Palette: pal,
		Logger:  a.log,
	})
	if err != nil {
		cancel()
		store.Close()
		return err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cancel()
		srv.Close()
		store.Close()
		return fmt.Errorf("failed to find free port: %w", err)
	}

	httpServer := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server error", zap.Error(err))
		}
	}()
	go func() {
		if err := srv.WatchPalette(srvCtx); err != nil {
			a.log.Warn("palette watcher stopped", zap.Error(err))
		}
	}()

	url := fmt.Sprintf("http://%s/", listener.Addr())
	a.mu.Lock()
	a.srvCancel = cancel
	a.server = srv
	a.store = store
	a.httpServer = httpServer
	a.serverURL = url
	a.mu.Unlock()

	a.log.Info("desktop server started", zap.String("url", url))
	runtime.EventsEmit(a.ctx, "navigate", url)
	return nil
}

// stopServer stops the current server if running.
func (a *App) stopServer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.httpServer.Shutdown(ctx)
		cancel()
		a.httpServer = nil
	}
	if a.server != nil {
		a.srvCancel()
		a.server.Close()
		a.server = nil
	}
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	a.serverURL = ""
}

// OpenPalette lets the user pick a palette file and applies it to every
// open session.
func (a *App) OpenPalette() (string, error) {
	selection, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Open Block Palette",
		Filters: []runtime.FileFilter{
			{DisplayName: "Palette Files (*.yaml, *.yml)", Pattern: "*.yaml;*.yml"},
		},
	})
	if err != nil || selection == "" {
		return "", err
	}

	pal, err := palette.Load(selection)
	if err != nil {
		return "", err
	}

	a.mu.RLock()
	srv := a.server
	a.mu.RUnlock()
	if srv != nil {
		srv.SetPalette(pal)
	}
	a.cfg.Palette.File = selection
	runtime.WindowSetTitle(a.ctx, fmt.Sprintf("LEGO Coder - %s", filepath.Base(selection)))
	return selection, nil
}

// ResetPalette restores the built-in palette.
func (a *App) ResetPalette() {
	a.mu.RLock()
	srv := a.server
	a.mu.RUnlock()
	if srv != nil {
		srv.SetPalette(palette.Default())
	}
	a.cfg.Palette.File = ""
	runtime.WindowSetTitle(a.ctx, "LEGO Coder")
}

// GetServerURL returns the URL of the running server, or empty string if not running.
func (a *App) GetServerURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.serverURL
}

// GetHandler sends the webview to the local server once it is up, and
// shows a loading screen until then.
func (a *App) GetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if url := a.GetServerURL(); url != "" {
			http.Redirect(w, r, url, http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(loadingHTML))
	})
}

// dataDir holds the desktop config and the saved code database.
func dataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "legocoder")
}

const loadingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8"/>
    <title>LEGO Coder</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            background: #1b2636;
            color: #fff;
            min-height: 100vh;
            margin: 0;
            display: flex;
            align-items: center;
            justify-content: center;
        }
        .brick { font-size: 2rem; font-weight: 700; letter-spacing: 0.1em; color: #ffcf00; }
        p { color: #94a3b8; }
    </style>
</head>
<body>
    <div>
        <div class="brick">LEGO CODER</div>
        <p>Starting...</p>
    </div>
    <script>
        if (window.runtime) {
            window.runtime.EventsOn("navigate", function (url) { window.location.href = url; });
        }
        setTimeout(function () { window.location.reload(); }, 1000);
    </script>
</body>
</html>
`
