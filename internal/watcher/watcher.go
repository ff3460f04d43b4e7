// Package watcher reloads data sets when their source files change on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bassista/go_refresh/internal/logger"
)

const DefaultDebounce = 200 * time.Millisecond

// Target is a watched source file and the item type loaded from it.
type Target struct {
	Path string
	Type string
}

// ChangeFunc receives the sorted, de-duplicated item types whose files changed.
type ChangeFunc func(types []string)

// Watcher watches the parent directories of its targets. Events are matched
// by file name and coalesced over the debounce window.
type Watcher struct {
	dirs     map[string]map[string][]string // dir -> base -> item types
	onChange ChangeFunc
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// Option is a function that configures the watcher
type Option func(*Watcher)

// WithDebounce sets how long events are coalesced before onChange fires.
// Non-positive values keep DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func New(targets []Target, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("onChange callback is required")
	}
	w := &Watcher{
		dirs:     make(map[string]map[string][]string),
		onChange: onChange,
		debounce: DefaultDebounce,
		pending:  make(map[string]bool),
	}
	for _, t := range targets {
		if t.Path == "" || t.Type == "" {
			return nil, fmt.Errorf("watch target %q: path and type are required", t.Path)
		}
		abs, err := filepath.Abs(t.Path)
		if err != nil {
			return nil, fmt.Errorf("watch target %s: %w", t.Path, err)
		}
		dir, base := filepath.Dir(abs), filepath.Base(abs)
		if w.dirs[dir] == nil {
			w.dirs[dir] = make(map[string][]string)
		}
		w.dirs[dir][base] = append(w.dirs[dir][base], t.Type)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start adds every directory to a new fsnotify watcher and serves events
// until ctx is cancelled. Directories rather than files are watched so that
// atomic replacements (temp file + rename) are still observed.
func (w *Watcher) Start(ctx context.Context) error {
	if len(w.dirs) == 0 {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return fmt.Errorf("watch dir %s: %w", dir, err)
		}
	}

	log := logger.WithComponent("watcher")
	log.Infof("watching %d director(ies) for source file changes", len(w.dirs))

	go func() {
		defer func() {
			_ = fw.Close()
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				log.Info("watcher stopped")
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				types := w.dirs[filepath.Dir(event.Name)][filepath.Base(event.Name)]
				if len(types) == 0 {
					continue
				}
				log.Debugf("%s on %s", event.Op, event.Name)
				w.schedule(types)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Errorf("watcher error: %v", err)
			}
		}
	}()
	return nil
}

// schedule adds types to the pending set and restarts the debounce timer.
func (w *Watcher) schedule(types []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range types {
		w.pending[t] = true
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	types := make([]string, 0, len(w.pending))
	for t := range w.pending {
		types = append(types, t)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	if len(types) == 0 {
		return
	}
	sort.Strings(types)
	w.onChange(types)
}
