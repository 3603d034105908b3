package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"mediavault/internal/metrics"
)

// Watcher invalidates the catalog cache when anything under the series root
// changes. fsnotify is not recursive, so every directory is watched and new
// directories are added as they appear.
type Watcher struct {
	root    string
	cache   *Cache
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

func NewWatcher(root string, cache *Cache, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	w := &Watcher{
		root:    filepath.Clean(root),
		cache:   cache,
		watcher: fw,
		logger:  logger,
	}
	if err := w.addTree(w.root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return fmt.Errorf("watch %s: %w", p, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			if p == dir {
				return fmt.Errorf("watch %s: %w", p, err)
			}
			w.logger.Warn("catalog watch failed", slog.String("dir", p), slog.String("error", err.Error()))
		}
		return nil
	})
}

// Run consumes filesystem events until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.watcher.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	rel, ok := w.relative(event.Name)
	if !ok {
		return
	}
	if event.Op.Has(fsnotify.Create) {
		// New season or series directories need their own watch.
		_ = w.addTree(event.Name)
	}
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." {
		dir = filepath.ToSlash(rel)
	}
	w.cache.Invalidate(dir)
	metrics.CatalogInvalidationsTotal.Inc()
}

func (w *Watcher) relative(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
