// Package watch reloads the geofence policy when its file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/propsync/fieldtask/internal/infrastructure/config"
)

// PolicyWatcher watches the geofence policy file and invokes a callback with
// the reloaded policy. Invalid or missing policy files are ignored; the
// running server keeps its last good threshold.
type PolicyWatcher struct {
	root     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload func(config.GeofenceConfig)
}

// NewPolicyWatcher creates a watcher over the data root's policy file.
func NewPolicyWatcher(root string, debounce time.Duration, onReload func(config.GeofenceConfig)) (*PolicyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &PolicyWatcher{
		root:     root,
		watcher:  w,
		debounce: debounce,
		onReload: onReload,
	}, nil
}

// Run starts the event loop. It blocks until the context is cancelled.
func (w *PolicyWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	policyPath, err := config.GeofencePath(w.root)
	if err != nil {
		return err
	}
	// Watch the directory, not the file: editors replace files on save and a
	// file-level watch dies with the old inode.
	if err := w.watcher.Add(filepath.Dir(policyPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(policyPath), err)
	}

	settle := newSettleTimer(w.debounce, func() { w.reload() })
	defer settle.cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != policyPath {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			settle.poke()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (w *PolicyWatcher) reload() {
	cfg, err := config.LoadGeofence(w.root)
	if err != nil || cfg == nil {
		return
	}
	if w.onReload != nil {
		w.onReload(*cfg)
	}
}
