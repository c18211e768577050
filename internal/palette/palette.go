// Package palette defines the draggable block tiles offered to the user.
package palette

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/livetemplate/legocoder"
)

//go:embed default.yaml
var defaultYAML []byte

// Tile is one draggable block. Its label is what lands in the workspace.
type Tile struct {
	Label string `yaml:"label" json:"label"`
	Icon  string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// Category groups tiles under a heading.
type Category struct {
	Name   string `yaml:"name" json:"name"`
	ID     string `yaml:"id" json:"id"`
	Blocks []Tile `yaml:"blocks" json:"blocks"`
}

// Palette is the full set of tiles.
type Palette struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// Default returns the built-in palette.
func Default() *Palette {
	p, err := Parse("default.yaml", defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in palette is invalid: %v", err))
	}
	return p
}

// Load reads a palette file. An empty path returns the default palette.
func Load(path string) (*Palette, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read palette: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes and validates palette YAML. name is used in error messages.
func Parse(name string, data []byte) (*Palette, error) {
	var p Palette
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, legocoder.FromYAMLError(name, err).
			WithHint("A palette is a list of categories, each with a list of blocks that have a label")
	}
	if err := p.validate(name); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Palette) validate(name string) error {
	if len(p.Categories) == 0 {
		return legocoder.NewFileError(name, 0, "palette has no categories").
			WithHint("Add at least one entry under categories:")
	}

	seen := make(map[string]bool)
	for i := range p.Categories {
		c := &p.Categories[i]
		if c.Name == "" {
			return legocoder.NewFileError(name, 0, fmt.Sprintf("category %d has no name", i+1))
		}
		if c.ID == "" {
			c.ID = strings.ToLower(strings.ReplaceAll(c.Name, " ", "-"))
		}
		for _, t := range c.Blocks {
			if strings.TrimSpace(t.Label) == "" {
				return legocoder.NewFileError(name, 0, fmt.Sprintf("category %q has a block without a label", c.Name))
			}
			if seen[t.Label] {
				return legocoder.NewFileError(name, 0, fmt.Sprintf("block %q appears more than once", t.Label)).
					WithHint("Each tile label must be unique across the palette")
			}
			seen[t.Label] = true
		}
	}
	return nil
}

// Labels returns every tile label in palette order.
func (p *Palette) Labels() []string {
	var out []string
	for _, c := range p.Categories {
		for _, t := range c.Blocks {
			out = append(out, t.Label)
		}
	}
	return out
}

// Has reports whether the palette offers a tile with this label.
func (p *Palette) Has(label string) bool {
	for _, c := range p.Categories {
		for _, t := range c.Blocks {
			if t.Label == label {
				return true
			}
		}
	}
	return false
}
