package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MKhiriev/go-spirit-connect/internal/bus"
	"github.com/MKhiriev/go-spirit-connect/internal/logger"
)

const defaultDebounce = 250 * time.Millisecond

// StoreWatcher watches the database file for writes made by other processes
// sharing it, recounts the pending work and announces the change on the bus.
// Bursts of file events are collapsed into one notification.
type StoreWatcher struct {
	path      string
	refresher PendingRefresher
	events    *bus.Bus
	debounce  time.Duration

	logger *logger.Logger
}

// NewStoreWatcher creates a watcher for the database at path.
func NewStoreWatcher(path string, refresher PendingRefresher, events *bus.Bus, log *logger.Logger) *StoreWatcher {
	return &StoreWatcher{
		path:      filepath.Clean(path),
		refresher: refresher,
		events:    events,
		debounce:  defaultDebounce,
		logger:    log,
	}
}

// matches reports whether name is the database file or one of its journals.
func (w *StoreWatcher) matches(name string) bool {
	name = filepath.Clean(name)
	return name == w.path || name == w.path+"-wal" || name == w.path+"-journal"
}

func (w *StoreWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched because SQLite replaces journal files.
	dir := filepath.Dir(w.path)
	if err = watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	w.logger.Info().Str("func", "*StoreWatcher.Run").Str("path", w.path).Msg("watching store")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.matches(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.changed(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Str("func", "*StoreWatcher.Run").Msg("watcher error")
		}
	}
}

func (w *StoreWatcher) changed(ctx context.Context) {
	pending, err := w.refresher.RefreshPending(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Str("func", "*StoreWatcher.changed").Msg("failed to recount pending work")
	}

	if w.events != nil {
		w.events.Publish(bus.Event{Kind: bus.KindStoreChanged, Payload: w.path})
	}
	w.logger.Debug().
		Str("func", "*StoreWatcher.changed").
		Int("pending", pending).
		Msg("store changed on disk")
}
