package availability

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher observes the busy marker with fsnotify and reports writer
// lock/unlock transitions. It is informational only: admission of reads is
// still decided by Coordinator polling.
type Watcher struct {
	marker   MarkerFile
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func(busy bool)

	mu   sync.Mutex
	busy bool
}

// NewWatcher watches the directory containing markerPath. onChange is
// called with the new state on every transition, and once with the initial
// state when Run starts.
func NewWatcher(markerPath string, onChange func(busy bool), logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating marker watcher: %w", err)
	}
	abs, err := filepath.Abs(markerPath)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("resolving marker path: %w", err)
	}
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Watcher{
		marker:   MarkerFile{Path: abs},
		watcher:  fw,
		logger:   logger,
		onChange: onChange,
	}, nil
}

// Busy returns the last observed state.
func (w *Watcher) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.marker.Path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	busy, _ := w.marker.Busy()
	w.set(busy, true)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("marker watcher error")
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.marker.Path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	// Re-stat rather than trusting the op: create/remove pairs can coalesce.
	busy, _ := w.marker.Busy()
	w.set(busy, false)
}

func (w *Watcher) set(busy, initial bool) {
	w.mu.Lock()
	changed := initial || w.busy != busy
	w.busy = busy
	w.mu.Unlock()

	if !changed {
		return
	}
	if busy {
		w.logger.Info().Str("marker", w.marker.Path).Msg("writer holds the resource")
	} else {
		w.logger.Info().Str("marker", w.marker.Path).Msg("writer released the resource")
	}
	w.onChange(busy)
}
