// Package codegen turns a workspace into a Python program for the selected
// LEGO platform.
package codegen

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/workspace"
)

var (
	// ErrEmptyWorkspace is returned when generating from a workspace with no blocks.
	ErrEmptyWorkspace = errors.New("please add some blocks to the workspace before generating code")
	// ErrEmptyBuffer is returned when generating from a blank code buffer.
	ErrEmptyBuffer = errors.New("please write some Python code before generating")
)

// MIMEType labels downloaded programs.
const MIMEType = "text/x-python"

// dateLayout matches a US-locale short date (e.g. 3/9/2024).
const dateLayout = "1/2/2006"

// Generator produces program text. The zero value uses time.Now.
type Generator struct {
	Now func() time.Time
}

// New creates a generator with the given clock; nil means time.Now.
func New(now func() time.Time) *Generator {
	return &Generator{Now: now}
}

func (g *Generator) now() time.Time {
	if g == nil || g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// Generate renders the blocks in order. Each block gets a numbered comment
// line, the body of the first rule its label matches, and a blank line.
func (g *Generator) Generate(p legocoder.Platform, blocks []workspace.Block) (string, error) {
	if len(blocks) == 0 {
		return "", ErrEmptyWorkspace
	}

	var b strings.Builder
	g.writeHeader(&b, p, "block code")
	for i, block := range blocks {
		fmt.Fprintf(&b, "# %d. %s\n", i+1, block.Label)
		b.WriteString(Body(block.Label))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// GenerateFromText wraps hand-written code with the program header.
func (g *Generator) GenerateFromText(p legocoder.Platform, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", ErrEmptyBuffer
	}

	var b strings.Builder
	g.writeHeader(&b, p, "Python code")
	b.WriteString(code)
	return b.String(), nil
}

func (g *Generator) writeHeader(b *strings.Builder, p legocoder.Platform, origin string) {
	fmt.Fprintf(b, "# LEGO %s Program\n", p.ShortName())
	fmt.Fprintf(b, "# Generated from %s\n", origin)
	fmt.Fprintf(b, "# Date: %s\n\n", g.now().Format(dateLayout))
}

// FileName names a downloaded program, e.g. lego_program_EV3_1710000000000.py.
func FileName(p legocoder.Platform, at time.Time) string {
	return fmt.Sprintf("lego_program_%s_%d.py", p.FileTag(), at.UnixMilli())
}
