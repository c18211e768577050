package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/codegen"
	"github.com/livetemplate/legocoder/internal/palette"
	"github.com/livetemplate/legocoder/internal/workspace"
)

func newGenerateCommand(opts *rootOptions) *cobra.Command {
	var (
		platformKey string
		pythonFile  string
		outFile     string
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "generate [block labels...]",
		Short: "Generate a Python program from block labels or a Python file",
		Example: `  legocoder generate --platform ev3 "Move Forward" "Turn Right"
  legocoder generate --platform spike --python main.py
  cat main.py | legocoder generate --python -
  legocoder generate --strict -o robot.py "Repeat 10x" "Move Forward"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}

			p := cfg.Simulation.GetDefaultPlatform()
			if cmd.Flags().Changed("platform") {
				p = legocoder.ParsePlatform(platformKey)
			}

			gen := codegen.New(time.Now)
			var program string
			if pythonFile != "" {
				if len(args) > 0 {
					return fmt.Errorf("block labels cannot be combined with --python")
				}
				code, err := readInput(cmd.InOrStdin(), pythonFile)
				if err != nil {
					return err
				}
				program, err = gen.GenerateFromText(p, code)
				if err != nil {
					return err
				}
			} else {
				if strict {
					pal, err := palette.Load(cfg.Palette.File)
					if err != nil {
						return err
					}
					for _, label := range args {
						if !pal.Has(label) {
							return fmt.Errorf("unknown block %q: not in the palette (code rules exist for: %s)",
								label, strings.Join(codegen.KnownLabels(), ", "))
						}
					}
				}
				ws := workspace.NewStore()
				for _, label := range args {
					ws.Append(label)
				}
				program, err = gen.Generate(p, ws.List())
				if err != nil {
					return err
				}
			}

			opts.log().Debug("program generated",
				zap.String("platform", p.Key()),
				zap.Int("bytes", len(program)))

			if outFile == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), program)
				return err
			}
			if err := os.WriteFile(outFile, []byte(program), 0644); err != nil {
				return fmt.Errorf("failed to write program: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s program to %s\n", p.DisplayName(), outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&platformKey, "platform", "", "Target platform: ev3 (mindstorms) or spike (default from config)")
	cmd.Flags().StringVar(&pythonFile, "python", "", "Wrap a Python file instead of blocks (- reads stdin)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the program to a file instead of stdout")
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject labels that are not in the palette")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read python code: %w", err)
	}
	return string(data), nil
}
