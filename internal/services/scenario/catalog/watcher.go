package catalog

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a catalog directory into a Store when its YAML files
// change. A reload that fails to parse keeps the previous catalog.
type Watcher struct {
	dir      string
	store    *Store
	checker  Checker
	debounce time.Duration
	logger   *log.Logger
	onReload func(*Catalog)

	fsw *fsnotify.Watcher
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long changes accumulate before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReloadHook runs fn after every successful reload.
func WithReloadHook(fn func(*Catalog)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(logger *log.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, store *Store, checker Checker, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch catalog dir %s: %w", dir, err)
	}
	w := &Watcher{
		dir:      dir,
		store:    store,
		checker:  checker,
		debounce: defaultDebounce,
		logger:   log.Default(),
		fsw:      fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run processes file events until ctx ends, then closes the fs watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()
	dirty := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !isCatalogFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				dirty = true
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("catalog watcher error: %v", err)
		case <-ticker.C:
			if dirty {
				dirty = false
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	next, err := LoadDir(w.dir, w.checker)
	if err != nil {
		w.logger.Printf("catalog reload failed, keeping previous catalog: %v", err)
		return
	}
	w.store.Swap(next)
	w.logger.Printf("catalog reloaded: %d scenarios", next.Len())
	if w.onReload != nil {
		w.onReload(next)
	}
}
