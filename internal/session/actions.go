package session

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/livetemplate/livetemplate"
	"go.uber.org/zap"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/codegen"
	"github.com/livetemplate/legocoder/internal/device"
	"github.com/livetemplate/legocoder/internal/storage"
	"github.com/livetemplate/legocoder/internal/workspace"
)

const saveTimeout = 5 * time.Second

// HandleAction applies a UI action. Errors the user can act on are also
// delivered as an alert effect; none of them change state.
func (s *Session) HandleAction(action string, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	ctx := livetemplate.NewContext(s.ctx, action, data)

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	var err error
	switch action {
	case "selectSoftware":
		s.SelectSoftware(ctx.GetString("software"))
	case "back":
		s.Back()
	case "backToCoding":
		s.BackToCoding()
	case "addBlock":
		s.AddBlock(ctx.GetString("label"))
	case "removeBlock":
		s.RemoveBlock(ctx.GetString("id"))
	case "clearWorkspace":
		s.ClearWorkspace()
	case "switchMode":
		s.SwitchMode(Mode(ctx.GetString("mode")))
	case "updateCode":
		s.UpdateCode(ctx.GetString("code"))
	case "runPython":
		s.RunPython()
	case "savePython":
		s.SavePython(s.ctx)
	case "resetPython":
		s.ResetPython()
	case "clearPython":
		s.ClearPython()
	case "generate":
		err = s.Generate()
	case "generatePython":
		err = s.GeneratePython()
	case "download":
		d := s.Download()
		s.emit(Effect{Kind: EffectDownload, Download: &d})
	case "upload":
		err = s.Upload()
	case "connectUSB":
		s.ConnectUSB()
	case "disconnectUSB":
		s.DisconnectUSB()
	case "clearConsole":
		s.ClearConsole()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	if err != nil {
		if msg := Notice(err); msg != "" {
			s.emit(Effect{Kind: EffectAlert, Message: msg})
		}
		s.log.Debug("action rejected", zap.String("action", action), zap.Error(err))
	}
	return err
}

// showScreen switches views. Entering the USB screen refreshes the brick
// status from the connection state. Caller holds s.mu.
func (s *Session) showScreen(screen Screen) {
	s.screen = screen
	if screen == ScreenUSB {
		s.refreshBrickLocked()
	}
}

// SelectSoftware picks the platform and opens the coding screen.
func (s *Session) SelectSoftware(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.platform = legocoder.ParsePlatform(key)
	s.selected = true
	s.showScreen(ScreenCoding)
	s.logf("> Selected %s programming environment", s.platform.DisplayName())
	s.logf("> Loading block palette...")
}

// Back returns to the selection screen.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.showScreen(ScreenSelection)
	s.logf("> Returned to software selection")
}

// BackToCoding returns from the USB screen to the editor.
func (s *Session) BackToCoding() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.showScreen(ScreenCoding)
	s.logf("> Returned to code editor")
}

// AddBlock appends a block with the given label.
func (s *Session) AddBlock(label string) workspace.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.workspace.Append(label)
	s.logf("> Added block: %s", label)
	return b
}

// RemoveBlock removes the block with id. Unknown ids leave the workspace as is.
func (s *Session) RemoveBlock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workspace.Remove(id)
	s.logf("> Block removed from workspace")
}

// ClearWorkspace removes every block. Clearing an empty workspace logs nothing.
func (s *Session) ClearWorkspace() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workspace.Clear() {
		s.logf("> Workspace cleared")
	}
}

// SwitchMode changes between block and Python editing. Other values are ignored.
func (s *Session) SwitchMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m {
	case ModeBlocks:
		s.mode = m
		s.logf("> Switched to block coding mode")
	case ModePython:
		s.mode = m
		s.logf("> Switched to Python coding mode")
	}
}

// UpdateCode replaces the Python buffer.
func (s *Session) UpdateCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.code = code
}

// RunPython pretends to run the buffer on the device.
func (s *Session) RunPython() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isBlank(s.code) {
		s.logf("> No Python code to run")
		return
	}
	s.logf("> Running Python code...")
	s.logf("> Simulating execution on LEGO device...")
	s.logf("> Motor A: rotating 360 degrees")
	s.logf("> Color sensor B: detecting color")
	s.logf("> Execution complete")
}

// SavePython stores the buffer. A missing or failing store is reported on
// the console only.
func (s *Session) SavePython(ctx context.Context) {
	s.mu.Lock()
	code := s.code
	s.mu.Unlock()

	err := storage.ErrClosed
	if s.opts.Store != nil {
		ctx, cancel := context.WithTimeout(ctx, saveTimeout)
		err = s.opts.Store.Set(ctx, storage.CodeKey, code)
		cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warn("could not save code", zap.Error(err))
		s.logf("> Could not save code (storage unavailable)")
		return
	}
	s.logf("> Python code saved locally")
}

// ResetPython restores the default program.
func (s *Session) ResetPython() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.code = DefaultProgram
	s.logf("> Python editor reset to default")
}

// ClearPython empties the buffer.
func (s *Session) ClearPython() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.code = ""
	s.logf("> Python code cleared")
}

// Generate builds a program from the workspace and opens the USB screen.
func (s *Session) Generate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.opts.Generator.Generate(s.platform, s.workspace.List())
	if err != nil {
		return err
	}
	if !s.usbConnected {
		return ErrNotConnected
	}

	s.logf("> Generating program code from blocks...")
	s.logf("> Converting block sequence to executable code...")
	s.showScreen(ScreenUSB)
	s.program = &generated{code: code, origin: ModeBlocks}
	s.logf("> Code generated successfully!")
	return nil
}

// GeneratePython wraps the Python buffer in a program header and opens the
// USB screen.
func (s *Session) GeneratePython() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.opts.Generator.GenerateFromText(s.platform, s.code)
	if err != nil {
		return err
	}
	if !s.usbConnected {
		return ErrNotConnected
	}

	s.logf("> Generating program from Python code...")
	s.showScreen(ScreenUSB)
	s.program = &generated{code: code, origin: ModePython}
	s.logf("> Python code generated successfully!")
	return nil
}

// Download returns the generated program as a file and marks the brick as
// having a program ready.
func (s *Session) Download() Download {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := "// No code generated"
	if s.program != nil {
		content = s.program.code
	}
	name := codegen.FileName(s.platform, s.opts.Now())

	s.logf("> Code downloaded as %s", name)
	s.logf("> Program ready to run on %s", s.platform.DeviceName())
	s.brickStatus = BrickProgramReady
	s.alertLater(fmt.Sprintf("Code downloaded! Transfer %s to your LEGO device to run it.", name))

	return Download{Name: name, MIME: codegen.MIMEType, Content: content}
}

// Upload starts the simulated transfer of the generated program.
func (s *Session) Upload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.usbConnected:
		return ErrNotConnected
	case s.program == nil:
		return ErrNothingToUpload
	case s.uploading:
		return ErrUploadBusy
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.uploadCancel = cancel
	s.uploading = true
	s.uploadPct = 0
	s.logf("> Uploading program to %s...", s.platform.DeviceName())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		err := device.Upload(ctx, s.opts.Upload, func(pct float64) {
			s.mu.Lock()
			s.uploadPct = pct
			s.mu.Unlock()
			s.changed()
		})

		s.mu.Lock()
		s.uploading = false
		s.uploadCancel = nil
		if err == nil {
			err = ctx.Err()
		}
		if err == nil && !s.usbConnected {
			err = ErrNotConnected
		}
		if err != nil {
			if !s.closed {
				s.logf("> Upload cancelled")
			}
			s.mu.Unlock()
			s.changed()
			return
		}
		s.logf("> Upload complete!")
		s.logf("> Program ready to run on %s", s.platform.DeviceName())
		s.brickStatus = BrickProgramReady
		s.alertLater(fmt.Sprintf("Upload successful! Program is now ready to run on your %s.", s.platform.DeviceName()))
		s.mu.Unlock()
		s.changed()
	}()
	return nil
}

// ConnectUSB marks the device connected right away, ending any detection.
func (s *Session) ConnectUSB() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detectCancel != nil {
		s.detectCancel()
		s.detectCancel = nil
	}
	s.connectLocked()
}

// DisconnectUSB drops the connection and aborts a running upload.
func (s *Session) DisconnectUSB() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detectCancel != nil {
		s.detectCancel()
		s.detectCancel = nil
	}
	if s.uploadCancel != nil {
		s.uploadCancel()
	}
	s.usbConnected = false
	s.refreshBrickLocked()
	s.logf("> USB disconnected")
}

// ClearConsole resets the console to its startup lines.
func (s *Session) ClearConsole() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.console = readyConsole()
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func roundPercent(p float64) int {
	return int(math.Round(p))
}
