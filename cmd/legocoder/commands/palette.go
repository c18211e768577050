package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/livetemplate/legocoder/internal/palette"
)

var (
	categoryStyle = lipgloss.NewStyle().Bold(true)
	iconStyle     = lipgloss.NewStyle().Faint(true)
)

func newPaletteCommand(opts *rootOptions) *cobra.Command {
	var (
		file   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "palette",
		Short: "List the block palette",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("file") {
				cfg, err := loadConfig(opts.configPath)
				if err != nil {
					return err
				}
				file = cfg.Palette.File
			}

			pal, err := palette.Load(file)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(pal)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderPalette(pal))
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML palette file (default: config or built-in)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the palette as JSON")
	return cmd
}

// renderPalette lists categories with their tiles, labels tinted with the
// tile color when the output supports it.
func renderPalette(pal *palette.Palette) string {
	width := 0
	for _, c := range pal.Categories {
		for _, t := range c.Blocks {
			width = max(width, lipgloss.Width(t.Label))
		}
	}

	var sb strings.Builder
	for i, c := range pal.Categories {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(categoryStyle.Render(c.Name))
		fmt.Fprintf(&sb, " (%s)\n", c.ID)
		for _, t := range c.Blocks {
			label := lipgloss.NewStyle().Width(width)
			if t.Color != "" {
				label = label.Foreground(lipgloss.Color(t.Color))
			}
			sb.WriteString("  ")
			sb.WriteString(label.Render(t.Label))
			if t.Icon != "" {
				sb.WriteString("  ")
				sb.WriteString(iconStyle.Render(t.Icon))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
