// Package session holds the state of one user's visit: the screen they are
// on, their workspace, the simulated USB link and the console log. Every UI
// event arrives as an action through HandleAction.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livetemplate/legocoder"
	"github.com/livetemplate/legocoder/internal/codegen"
	"github.com/livetemplate/legocoder/internal/device"
	"github.com/livetemplate/legocoder/internal/palette"
	"github.com/livetemplate/legocoder/internal/storage"
	"github.com/livetemplate/legocoder/internal/workspace"
)

// Screen is one of the three views.
type Screen string

const (
	ScreenSelection Screen = "selection"
	ScreenCoding    Screen = "coding"
	ScreenUSB       Screen = "usb"
)

// Mode is the editing mode on the coding screen.
type Mode string

const (
	ModeBlocks Mode = "blocks"
	ModePython Mode = "python"
)

// Brick status lines.
const (
	BrickReady        = "Ready for code"
	BrickDisconnected = "Disconnected"
	BrickProgramReady = "Program Ready"
)

// MaxConsoleLines bounds the console; older lines are dropped first.
const MaxConsoleLines = 200

// DefaultProgram is what the Python editor starts with and resets to.
const DefaultProgram = `from spike import Motor, ColorSensor
import time

motor = Motor('A')
color_sensor = ColorSensor('B')

motor.run_for_degrees(360)
time.sleep(1)`

// alertDelay is how long a follow-up notice waits after its action.
const alertDelay = 500 * time.Millisecond

var (
	// ErrNotConnected is returned when an action needs the USB link.
	ErrNotConnected = errors.New("no LEGO device connected, please connect the USB cable")
	// ErrUploadBusy is returned when an upload is already running.
	ErrUploadBusy = errors.New("an upload is already in progress")
	// ErrNothingToUpload is returned when no program has been generated.
	ErrNothingToUpload = errors.New("generate a program before uploading")
	// ErrUnknownAction is returned for actions the session does not handle.
	ErrUnknownAction = errors.New("unknown action")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

func readyConsole() []string {
	return []string{
		"> System ready. Select blocks to create program.",
		"> Drag and drop blocks to workspace.",
	}
}

// EffectKind names a one-shot browser side effect.
type EffectKind string

const (
	EffectAlert    EffectKind = "alert"
	EffectDownload EffectKind = "download"
)

// Download is a file the browser should save.
type Download struct {
	Name    string `json:"name"`
	MIME    string `json:"mime"`
	Content string `json:"content"`
}

// Effect is something the browser must do beyond re-rendering.
type Effect struct {
	Kind     EffectKind `json:"kind"`
	Message  string     `json:"message,omitempty"`
	Download *Download  `json:"download,omitempty"`
}

// Options configures a Session. Zero values get defaults.
type Options struct {
	Platform  legocoder.Platform
	Detector  device.DetectorConfig
	Upload    device.UploadConfig
	Store     storage.KV
	Generator *codegen.Generator
	Palette   func() *palette.Palette
	Now       func() time.Time
	Logger    *zap.Logger

	// OnChange is called, without locks held, after background work changes
	// state. Changes made by HandleAction do not trigger it.
	OnChange func()
	// OnEffect delivers alerts and downloads.
	OnEffect func(Effect)
}

type generated struct {
	code   string
	origin Mode
}

// Session is the state of one connected user.
type Session struct {
	id   string
	opts Options
	log  *zap.Logger

	mu           sync.Mutex
	closed       bool
	screen       Screen
	platform     legocoder.Platform
	selected     bool
	mode         Mode
	code         string
	workspace    *workspace.Store
	usbConnected bool
	brickStatus  string
	program      *generated
	uploading    bool
	uploadPct    float64
	console      []string

	ctx          context.Context
	cancel       context.CancelFunc
	detectCancel context.CancelFunc
	uploadCancel context.CancelFunc
	wg           sync.WaitGroup
}

// New creates a session on the selection screen. Call Start to begin USB
// detection and Close to stop all background work.
func New(opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Generator == nil {
		opts.Generator = codegen.New(opts.Now)
	}
	if opts.Palette == nil {
		opts.Palette = palette.Default
	}
	if opts.Detector.SuccessRate <= 0 {
		opts.Detector = device.DefaultDetectorConfig()
	}
	if opts.Upload.Interval <= 0 {
		opts.Upload = device.DefaultUploadConfig()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:          id,
		opts:        opts,
		log:         opts.Logger.With(zap.String("session", id)),
		screen:      ScreenSelection,
		platform:    opts.Platform,
		mode:        ModeBlocks,
		code:        DefaultProgram,
		workspace:   workspace.NewStore(workspace.WithClock(opts.Now)),
		brickStatus: BrickDisconnected,
		console:     readyConsole(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Start restores the saved code buffer and begins USB detection.
func (s *Session) Start(ctx context.Context) {
	if s.opts.Store != nil {
		code, ok, err := s.opts.Store.Get(ctx, storage.CodeKey)
		switch {
		case err != nil:
			s.log.Warn("could not load saved code", zap.Error(err))
		case ok:
			s.mu.Lock()
			s.code = code
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.startDetectionLocked()
}

// Close cancels detection, uploads and pending notices, and waits for them.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Session) startDetectionLocked() {
	if s.closed || s.usbConnected || s.detectCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.detectCancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		attempts, err := device.Detect(ctx, s.opts.Detector)
		s.mu.Lock()
		// Whoever cancelled ctx already cleared detectCancel and owns the
		// USB state from here on.
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			s.mu.Unlock()
			s.log.Debug("usb detection stopped", zap.Int("attempts", attempts), zap.Error(err))
			return
		}
		s.detectCancel = nil
		s.connectLocked()
		s.mu.Unlock()

		s.log.Debug("usb detected", zap.Int("attempts", attempts))
		s.changed()
	}()
}

func (s *Session) connectLocked() {
	s.usbConnected = true
	s.refreshBrickLocked()
	s.logf("> USB connection established")
	s.logf("> %s detected and ready", s.platform.DeviceName())
}

func (s *Session) refreshBrickLocked() {
	if s.usbConnected {
		s.brickStatus = BrickReady
	} else {
		s.brickStatus = BrickDisconnected
	}
}

// logf appends a console line. Caller holds s.mu.
func (s *Session) logf(format string, args ...any) {
	s.console = append(s.console, fmt.Sprintf(format, args...))
	if over := len(s.console) - MaxConsoleLines; over > 0 {
		s.console = append(s.console[:0:0], s.console[over:]...)
	}
}

func (s *Session) changed() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}

func (s *Session) emit(e Effect) {
	if s.opts.OnEffect != nil {
		s.opts.OnEffect(e)
	}
}

// alertLater shows msg after alertDelay unless the session closes first.
// Caller holds s.mu.
func (s *Session) alertLater(msg string) {
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(alertDelay)
		defer t.Stop()
		select {
		case <-t.C:
			s.emit(Effect{Kind: EffectAlert, Message: msg})
		case <-s.ctx.Done():
		}
	}()
}

// Notice is the message shown to the user for err, or "" when err is not
// one the user can act on.
func Notice(err error) string {
	switch {
	case errors.Is(err, codegen.ErrEmptyWorkspace):
		return "Please add some blocks to the workspace before generating code!"
	case errors.Is(err, codegen.ErrEmptyBuffer):
		return "Please write some Python code before generating!"
	case errors.Is(err, ErrNotConnected):
		return "No LEGO device connected. Please connect the USB cable."
	case errors.Is(err, ErrUploadBusy):
		return "An upload is already in progress."
	case errors.Is(err, ErrNothingToUpload):
		return "Generate a program before uploading."
	}
	return ""
}
