// Package embedded runs a LEGO Coder server until its context is done.
// Programs can bundle a legocoder.yaml and palette file with embed.FS to ship
// a preconfigured classroom build.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/livetemplate/legocoder/internal/config"
	"github.com/livetemplate/legocoder/internal/logging"
	"github.com/livetemplate/legocoder/internal/palette"
	"github.com/livetemplate/legocoder/internal/server"
	"github.com/livetemplate/legocoder/internal/storage"
)

// ShutdownTimeout bounds how long in-flight requests may drain.
const ShutdownTimeout = 10 * time.Second

// Serve runs a server configured from legocoder.yaml under rootPath in
// contentFS.
//
// Example usage:
//
//	//go:embed classroom/*
//	var classroomFS embed.FS
//
//	func main() {
//	    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	    defer stop()
//	    embedded.Serve(ctx, classroomFS, "classroom", "localhost:8080")
//	}
func Serve(ctx context.Context, contentFS fs.FS, rootPath string, addr string) error {
	return ServeWithOptions(ctx, Options{
		ContentFS: contentFS,
		RootPath:  rootPath,
		Addr:      addr,
	})
}

// Options provides configuration for the embedded server.
type Options struct {
	// ContentFS holds legocoder.yaml and any palette file it names (optional)
	ContentFS fs.FS

	// RootPath is the path prefix within the ContentFS (e.g., "classroom")
	RootPath string

	// Addr overrides the configured host:port (optional)
	Addr string

	// Config is used as-is instead of reading ContentFS (optional)
	Config *config.Config

	// Logger receives server logs; nil discards them
	Logger *zap.Logger

	// OnReady is called with the bound address once the listener is open (optional)
	OnReady func(addr string)
}

// ServeWithOptions serves until ctx is done, then drains HTTP requests,
// closes live sessions and the store.
func ServeWithOptions(ctx context.Context, opts Options) error {
	log := logging.OrNop(opts.Logger)

	cfg := opts.Config
	if cfg == nil {
		var cleanup func()
		var err error
		cfg, cleanup, err = loadEmbeddedConfig(opts.ContentFS, opts.RootPath)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	pal, err := palette.Load(cfg.Palette.File)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	// Session goroutines outlive ctx until the server is closed.
	srvCtx, cancelSrv := context.WithCancel(context.Background())
	srv, err := server.New(srvCtx, server.Options{
		Config:  cfg,
		Store:   store,
		Palette: pal,
		Logger:  log,
	})
	if err != nil {
		cancelSrv()
		return err
	}
	defer func() {
		cancelSrv()
		srv.Close()
	}()

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Addr()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	httpServer := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(log.Named("http")),
	}

	if opts.OnReady != nil {
		opts.OnReady(ln.Addr().String())
	}
	log.Info("server started", zap.String("addr", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.WatchPalette(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Int("sessions", srv.ConnectionCount()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadEmbeddedConfig extracts the content to a temp directory so relative
// palette paths and a sqlite file resolve against it.
func loadEmbeddedConfig(contentFS fs.FS, rootPath string) (*config.Config, func(), error) {
	noop := func() {}
	if contentFS == nil {
		return config.DefaultConfig(), noop, nil
	}

	tmpDir, err := os.MkdirTemp("", "legocoder-embedded-*")
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	if err := extractFS(contentFS, rootPath, tmpDir); err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("failed to extract embedded content: %w", err)
	}

	cfg, err := config.LoadFromDir(tmpDir)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Palette.File != "" && !filepath.IsAbs(cfg.Palette.File) {
		cfg.Palette.File = filepath.Join(tmpDir, cfg.Palette.File)
	}
	return cfg, cleanup, nil
}

// extractFS extracts files from an fs.FS to a directory on disk.
func extractFS(contentFS fs.FS, rootPath string, destDir string) error {
	srcFS := contentFS
	if rootPath != "" && rootPath != "." {
		sub, err := fs.Sub(contentFS, rootPath)
		if err != nil {
			return fmt.Errorf("failed to get sub-filesystem at %q: %w", rootPath, err)
		}
		srcFS = sub
	}

	cleanDestDir := filepath.Clean(destDir)
	return fs.WalkDir(srcFS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, path)
		cleanDestPath := filepath.Clean(destPath)
		if !strings.HasPrefix(cleanDestPath, cleanDestDir+string(os.PathSeparator)) && cleanDestPath != cleanDestDir {
			return fmt.Errorf("path traversal detected: %q resolves outside destination directory", path)
		}

		if d.IsDir() {
			return os.MkdirAll(destPath, 0755)
		}

		content, err := fs.ReadFile(srcFS, path)
		if err != nil {
			return fmt.Errorf("failed to read embedded file %q: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		return os.WriteFile(destPath, content, 0644)
	})
}
