package skill

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/odvcencio/flux/pkg/errors"
	"github.com/odvcencio/flux/pkg/logging"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads r whenever a file under dirs changes, until ctx is done.
// Directories that do not exist yet are skipped. Skill subdirectories created
// while watching are added.
func Watch(ctx context.Context, r *Registry, dirs []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "create skill watcher")
	}
	defer watcher.Close()

	for _, dir := range dirs {
		addTree(watcher, dir, r.logger)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					addTree(watcher, event.Name, r.logger)
				}
			}
			if event.Op&fsnotify.Chmod == event.Op {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = r.logger.Warn(logging.CategorySkill, "watch_error", err.Error(), nil)
		case <-fire:
			fire = nil
			if err := r.LoadAll(); err != nil {
				_ = r.logger.Error(logging.CategorySkill, "reload_failed", err.Error(), nil)
				continue
			}
			_ = r.logger.Info(logging.CategorySkill, "reloaded", "", map[string]any{"count": r.Count()})
		}
	}
}

// addTree watches dir and its immediate skill subdirectories.
func addTree(watcher *fsnotify.Watcher, dir string, logger *logging.Logger) {
	if err := watcher.Add(dir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = logger.Warn(logging.CategorySkill, "watch_add_failed", err.Error(), map[string]any{"dir": dir})
		}
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			_ = watcher.Add(filepath.Join(dir, entry.Name()))
		}
	}
}
