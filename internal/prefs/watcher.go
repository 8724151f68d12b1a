package prefs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write
// before re-reading the table.
const DefaultDebounce = 500 * time.Millisecond

// Watcher refreshes a Store when another process writes the database.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	files    map[string]bool
	Debounce time.Duration
}

// NewWatcher watches the directory holding the store's database. Only
// events on the database file and its WAL trigger a refresh.
func NewWatcher(store *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("prefs: create file watcher: %w", err)
	}

	path := filepath.Clean(store.Path())
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("prefs: watch %q: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		store:   store,
		watcher: w,
		files: map[string]bool{
			path:          true,
			path + "-wal": true,
		},
		Debounce: DefaultDebounce,
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(w.Debounce, func() {
					if err := w.store.Refresh(); err != nil {
						w.store.logger.Error().Err(err).Msg("preference refresh failed")
					}
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.store.logger.Warn().Err(err).Msg("preference watcher error")
		}
	}
}
