package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livetemplate/legocoder/internal/config"
	"github.com/livetemplate/legocoder/internal/logging"
	"github.com/livetemplate/legocoder/pkg/embedded"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		port        int
		host        string
		watch       bool
		paletteFile string
		driver      string
		dsn         string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the LEGO Coder web server",
		Example: `  legocoder serve                          # http://localhost:8080
  legocoder serve --port 3000 --host 0.0.0.0
  legocoder serve --palette blocks.yaml --watch
  legocoder serve --storage memory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			// CLI flags override config
			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("palette") {
				cfg.Palette.File = paletteFile
			}
			if flags.Changed("watch") {
				cfg.Palette.HotReload = watch
			}
			if flags.Changed("storage") {
				cfg.Storage.Driver = driver
			}
			if flags.Changed("dsn") {
				cfg.Storage.DSN = dsn
			}
			if opts.debug {
				cfg.Server.Debug = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := opts.log()
			if cfg.Server.Debug && !opts.debug {
				if log, err = logging.New(true); err != nil {
					return err
				}
				defer func() { _ = log.Sync() }()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd.OutOrStdout(), cfg, log)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&host, "host", "localhost", "Host to bind")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the palette file when it changes")
	cmd.Flags().StringVar(&paletteFile, "palette", "", "YAML block palette (default: built-in)")
	cmd.Flags().StringVar(&driver, "storage", "sqlite", "Code buffer storage: sqlite, postgres or memory")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Storage DSN (sqlite file path or postgres connection string)")
	return cmd
}

// runServe serves until ctx is done, printing the banner once listening.
func runServe(ctx context.Context, out io.Writer, cfg *config.Config, log *zap.Logger) error {
	return embedded.ServeWithOptions(ctx, embedded.Options{
		Config: cfg,
		Logger: log,
		OnReady: func(addr string) {
			printBanner(out, cfg, addr)
		},
	})
}

func printBanner(out io.Writer, cfg *config.Config, addr string) {
	fmt.Fprintf(out, "🧱 %s\n\n", cfg.Title)
	driver := cfg.Storage.Driver
	if driver == "" {
		driver = "sqlite"
	}
	fmt.Fprintf(out, "Storage: %s\n", driver)
	if cfg.Palette.File != "" {
		fmt.Fprintf(out, "Palette: %s\n", cfg.Palette.File)
	} else {
		fmt.Fprintf(out, "Palette: built-in\n")
	}
	fmt.Fprintf(out, "\n🌐 Server running at http://%s\n", addr)
	if cfg.IsAPIEnabled() {
		fmt.Fprintf(out, "🔌 REST API enabled at /api/\n")
	}
	if cfg.Palette.File != "" && cfg.Palette.HotReload {
		fmt.Fprintf(out, "👀 Watching palette for changes\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")
}
