package symbols

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcher wraps fsnotify with recursive directory registration and
// debounced event delivery.
type watcher struct {
	root string
	fs   *fsnotify.Watcher
}

func newWatcher(root string) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &watcher{root: root, fs: fs}
	if err := w.addRecursive(root); err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

func (w *watcher) Close() error {
	return w.fs.Close()
}

// addRecursive registers root and every non-ignored subdirectory.
// fsnotify does not watch trees, only single directories.
func (w *watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if isDefaultIgnored(info.Name()) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// run delivers debounced batches of changed and removed paths (relative to
// the watcher root) until ctx is done.
func (w *watcher) run(ctx context.Context, deliver func(changed, removed []string)) error {
	pendingChanged := make(map[string]bool)
	pendingRemoved := make(map[string]bool)

	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(pendingChanged) == 0 && len(pendingRemoved) == 0 {
			return
		}
		changed := make([]string, 0, len(pendingChanged))
		for p := range pendingChanged {
			changed = append(changed, p)
		}
		removed := make([]string, 0, len(pendingRemoved))
		for p := range pendingRemoved {
			removed = append(removed, p)
		}
		pendingChanged = make(map[string]bool)
		pendingRemoved = make(map[string]bool)
		deliver(changed, removed)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(w.root, event.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			// new directories need their own watch
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if !isDefaultIgnored(info.Name()) {
						_ = w.addRecursive(event.Name)
					}
					continue
				}
			}

			if !Indexable(rel) {
				continue
			}

			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pendingChanged, rel)
				pendingRemoved[rel] = true
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				delete(pendingRemoved, rel)
				pendingChanged[rel] = true
			default:
				continue
			}

			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}

		case <-timerC:
			flush()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			_ = err // transient watch errors are not fatal
		}
	}
}
