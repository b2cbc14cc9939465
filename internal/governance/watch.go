package governance

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the rules file whenever it is written or replaced, until ctx
// is cancelled. The parent directory is watched so atomic renames are seen.
// A rules file that fails to parse is logged and the previous rules stay active.
func (e *Engine) Watch(ctx context.Context) error {
	if e.path == "" {
		return fmt.Errorf("governance: engine has no rules file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating governance watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(e.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	target := filepath.Clean(e.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(reloadDebounce)
			}
		case <-pending:
			pending = nil
			if err := e.Reload(); err != nil {
				e.logger.Error("governance reload failed, keeping previous rules", "path", e.path, "error", err)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("governance watcher error", "error", werr)
		}
	}
}
