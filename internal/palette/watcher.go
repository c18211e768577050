package palette

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher re-reads a palette file when it changes and hands the result to
// onReload. Invalid edits are logged and the previous palette stays active.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onReload func(*Palette)
	log      *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches path. The parent directory is watched so editors that
// save by rename are still seen.
func NewWatcher(path string, onReload func(*Palette), log *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsWatcher.Close()
		return nil, err
	}

	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		watcher:  fsWatcher,
		path:     abs,
		onReload: onReload,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until Stop is called.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			p, err := Load(w.path)
			if err != nil {
				w.log.Warn("palette reload failed", zap.String("file", w.path), zap.Error(err))
				continue
			}
			w.log.Info("palette reloaded", zap.String("file", w.path), zap.Int("blocks", len(p.Labels())))
			w.onReload(p)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("palette watcher error", zap.Error(err))

		case <-w.done:
			return
		}
	}
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
