package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/ticos-device/ticosd/internal/daemonerr"
	"github.com/ticos-device/ticosd/internal/logging"
)

// Watcher reloads the store whenever the base config file or the
// overlay file changes on disk, so an in-place edit (or an OTA payload
// that rewrites ticosd.conf) takes effect without a restart, matching
// spec §5's hot-reload requirement.
type Watcher struct {
	store *Store
	fsw   *fsnotify.Watcher
	log   *logging.Logger
	done  chan struct{}
}

// NewWatcher starts watching store's backing files. Call Close to stop.
func NewWatcher(store *Store, log *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, daemonerr.Wrap("config.newWatcher", daemonerr.CodeConfig, err)
	}
	if err := fsw.Add(store.basePath); err != nil {
		fsw.Close()
		return nil, daemonerr.Wrap("config.newWatcher", daemonerr.CodeConfig, err)
	}
	// The overlay file may not exist yet (no runtime toggles applied); a
	// missing watch target is tolerated since ApplyOverlay always
	// reloads the in-process store directly regardless of the watcher.
	_ = fsw.Add(store.overlayPath)

	w := &Watcher{store: store, fsw: fsw, log: log, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.store.Reload(); err != nil {
				w.log.WithOp("config.watch").Errorf("reload failed: %v", err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithOp("config.watch").Errorf("watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher goroutine and releases the inotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
