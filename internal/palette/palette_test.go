package palette

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/codegen"
)

func TestDefaultPaletteCoversGenerator(t *testing.T) {
	p := Default()
	assert.Equal(t, codegen.KnownLabels(), p.Labels(),
		"built-in tiles should be exactly the labels the generator understands")
	assert.Len(t, p.Categories, 3)
	assert.Equal(t, "motion", p.Categories[0].ID)
	assert.True(t, p.Has("Wait for Touch"))
	assert.False(t, p.Has("Dance"))
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestParseCustomPalette(t *testing.T) {
	p, err := Parse("custom.yaml", []byte(`
categories:
  - name: Dance Moves
    blocks:
      - label: Spin
      - label: Move Forward
`))
	require.NoError(t, err)
	assert.Equal(t, "dance-moves", p.Categories[0].ID)
	assert.Equal(t, []string{"Spin", "Move Forward"}, p.Labels())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{"no categories", "categories: []\n", "no categories"},
		{"unnamed category", "categories:\n  - blocks:\n      - label: x\n", "has no name"},
		{"blank label", "categories:\n  - name: A\n    blocks:\n      - label: '  '\n", "without a label"},
		{"duplicate", "categories:\n  - name: A\n    blocks:\n      - label: x\n  - name: B\n    blocks:\n      - label: x\n", "more than once"},
		{"bad yaml", "categories:\n  - name: [A\n", "Error in bad.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.yaml))
			require.Error(t, err)
			var fe *legocoder.FileError
			assert.True(t, errors.As(err, &fe), "want *legocoder.FileError, got %T", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "palette.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: A\n    blocks:\n      - label: One\n"), 0644))

	reloaded := make(chan *Palette, 4)
	w, err := NewWatcher(path, func(p *Palette) { reloaded <- p }, zap.NewNop())
	require.NoError(t, err)
	go w.Run()
	defer w.Stop()

	// An invalid edit is ignored.
	require.NoError(t, os.WriteFile(path, []byte("categories: []\n"), 0644))
	// A sibling file is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: A\n    blocks:\n      - label: Two\n"), 0644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case p := <-reloaded:
			if p.Has("Two") {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not deliver the updated palette")
		}
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "palette.yaml")
	require.NoError(t, os.WriteFile(path, defaultYAML, 0644))

	w, err := NewWatcher(path, func(*Palette) {}, zap.NewNop())
	require.NoError(t, err)
	done := make(chan struct{})
	go func() { w.Run(); close(done) }()

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
