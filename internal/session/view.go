package session

import (
	"html/template"

	"github.com/livetemplate/legocoder/internal/palette"
)

// BlockView is a workspace block as displayed.
type BlockView struct {
	ID    string
	Label string
	Time  string
}

// View is a snapshot of the session for rendering.
type View struct {
	Screen      Screen
	OnSelection bool
	OnCoding    bool
	OnUSB       bool
	Selected    bool

	PlatformKey string
	Display     string
	Device      string
	Short       string
	Brand       [3]string
	GuideHTML   template.HTML

	Mode        Mode
	PythonMode  bool
	FormatLabel string
	Code        string
	Palette     []palette.Category
	Blocks      []BlockView

	USBConnected  bool
	USBStatusText string
	BrickStatus   string

	HasProgram    bool
	Program       string
	UploadVisible bool
	Uploading     bool
	UploadPercent int

	Console []string
}

// View returns the current state for rendering. guide is the rendered
// connection guide for the current platform, looked up by the caller.
func (s *Session) View(guide func(key string) template.HTML) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.platform
	v := View{
		Screen:       s.screen,
		OnSelection:  s.screen == ScreenSelection,
		OnCoding:     s.screen == ScreenCoding,
		OnUSB:        s.screen == ScreenUSB,
		Selected:     s.selected,
		PlatformKey:  p.Key(),
		Display:      p.DisplayName(),
		Device:       p.DeviceName(),
		Short:        p.ShortName(),
		Brand:        p.Brand(),
		Mode:         s.mode,
		PythonMode:   s.mode == ModePython,
		Code:         s.code,
		USBConnected: s.usbConnected,
		BrickStatus:  s.brickStatus,
		Uploading:    s.uploading,
		Console:      append([]string(nil), s.console...),
	}
	if guide != nil {
		v.GuideHTML = guide(p.Key())
	}

	if s.mode == ModePython {
		v.FormatLabel = "Python code format"
	} else {
		v.FormatLabel = "Block code format"
	}

	if pal := s.opts.Palette(); pal != nil {
		v.Palette = pal.Categories
	}
	for _, b := range s.workspace.List() {
		v.Blocks = append(v.Blocks, BlockView{ID: b.ID, Label: b.Label, Time: b.Timestamp()})
	}

	if s.usbConnected {
		v.USBStatusText = "Connected - " + p.DeviceName() + " ready"
	} else {
		v.USBStatusText = "Disconnected - Please connect USB cable"
	}

	if s.program != nil {
		v.HasProgram = true
		v.Program = s.program.code
	}
	if s.uploading || s.uploadPct > 0 {
		v.UploadVisible = true
		v.UploadPercent = roundPercent(s.uploadPct)
	}
	return v
}
