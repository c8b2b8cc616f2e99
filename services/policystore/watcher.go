package policystore

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the policy document when its file changes on disk. A
// document that fails validation is rejected and the current version
// stays active.
type Watcher struct {
	store    *Store
	path     string
	debounce time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the given policy file
func NewWatcher(store *Store, path string, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		store:    store,
		path:     path,
		debounce: 500 * time.Millisecond,
		logger:   logger,
		watcher:  fsWatcher,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching the policy file's directory. Editors replace files
// rather than writing in place, so the directory is watched and events are
// filtered to the policy path.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.watchLoop(ctx)
	w.logger.Info("policy file watcher started", zap.String("path", w.path))
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of writes into one reload.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("policy watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) reload() {
	policy, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("failed to load changed policy file",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}

	if err := w.store.Replace(policy); err != nil {
		w.logger.Error("changed policy file rejected, previous version retained",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}

	w.logger.Info("policy reloaded from file",
		zap.String("path", w.path),
		zap.Int("version", w.store.Current().Version))
}

// Close stops the watcher and releases its resources
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
