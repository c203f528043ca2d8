package listing

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"traitforge/internal/observability"
)

// Watcher evicts cached listings of directories that change on disk. It only
// applies to the filesystem blob driver.
type Watcher struct {
	root    string
	cache   Cache
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// WatchFS starts watching every directory under root. Call Close to stop.
func WatchFS(ctx context.Context, root string, cache Cache, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:    root,
		cache:   cache,
		logger:  observability.OrNop(logger),
		watcher: fw,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	go w.run(ctx)
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("trait directory watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Debug("watch new path", zap.String("path", event.Name), zap.Error(err))
		}
	}
	rel, err := filepath.Rel(w.root, filepath.Dir(event.Name))
	if err != nil {
		return
	}
	dir := filepath.ToSlash(rel)
	if dir == "." {
		dir = ""
	}
	if err := w.cache.Delete(ctx, dir); err != nil {
		w.logger.Warn("listing cache eviction failed", zap.String("path", dir), zap.Error(err))
		return
	}
	w.logger.Debug("listing evicted", zap.String("path", dir), zap.String("op", event.Op.String()))
}
