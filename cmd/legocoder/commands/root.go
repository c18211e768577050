// Package commands implements the legocoder CLI.
package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livetemplate/legocoder/internal/logging"
)

// Version is overridden at build time with -ldflags "-X ...commands.Version=...".
var Version = "0.1.0-dev"

// rootOptions carries the persistent flags and the logger built from them.
type rootOptions struct {
	debug      bool
	configPath string
	logger     *zap.Logger
}

func (o *rootOptions) log() *zap.Logger {
	return logging.OrNop(o.logger)
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "legocoder",
		Short: "LEGO Coder - block programming for MINDSTORMS EV3 and SPIKE Prime",
		Long: `LEGO Coder is a browser-based block programming environment for
LEGO MINDSTORMS EV3 and SPIKE Prime kits.

Drag blocks into a workspace or write Python, then generate a program and
download it or send it to the simulated brick.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(opts.debug)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to legocoder.yaml (default: ./legocoder.yaml)")

	root.AddCommand(
		newServeCommand(opts),
		newGenerateCommand(opts),
		newPaletteCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Main runs the CLI and returns the process exit code.
func Main() int {
	if err := NewRootCommand().Execute(); err != nil {
		return 1
	}
	return 0
}
