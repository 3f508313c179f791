package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher notifies a callback whenever one of the fixed bootstrap
// filenames changes on disk, so a long-running process can recompose
// its system prompt without restarting.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
}

// NewWatcher starts watching dir for bootstrap file changes.
func NewWatcher(dir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: new watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("bootstrap: watch %s: %w", dir, err)
	}
	return &Watcher{watcher: w, dir: dir}, nil
}

// Run dispatches onChange whenever a watched bootstrap file is
// written, created, or removed, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func(name string)) {
	names := make(map[string]bool, len(Names))
	for _, n := range Names {
		names[n+".md"] = true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(ev.Name)
			if !names[base] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
				onChange(base)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
