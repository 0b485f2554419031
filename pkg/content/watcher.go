package content

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/psantana5/agencysite/pkg/logging"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads an override bundle file into a resolver whenever it changes.
// A reload that fails to parse or validate keeps the previous bundle.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	resolver *Resolver
	path     string
	debounce time.Duration
	logger   *logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher for path. The parent directory is watched so
// editors that replace the file by renaming are picked up.
func NewWatcher(path string, resolver *Resolver, logger *logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		watcher:  w,
		resolver: resolver,
		path:     abs,
		debounce: defaultDebounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking.
func (cw *Watcher) Start(ctx context.Context) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return
	}
	cw.running = true
	go cw.run(ctx)
}

// Close stops the watcher and waits for the event loop to exit
func (cw *Watcher) Close() error {
	cw.mu.Lock()
	running := cw.running
	cw.running = false
	cw.mu.Unlock()

	if running {
		close(cw.stopCh)
		<-cw.doneCh
	}
	return cw.watcher.Close()
}

func (cw *Watcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	timer := time.NewTimer(cw.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(cw.debounce)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Content watcher error", map[string]interface{}{"error": err.Error()})
		case <-timer.C:
			cw.reload()
		}
	}
}

func (cw *Watcher) reload() {
	bundle, err := LoadBundleFile(cw.path)
	cw.resolver.observer.ObserveBundleReload(err == nil)
	if err != nil {
		cw.logger.Error("Content bundle reload failed, keeping previous bundle", map[string]interface{}{
			"path":  cw.path,
			"error": err.Error(),
		})
		return
	}
	cw.resolver.SetBundle(bundle)
	cw.logger.Info("Content bundle reloaded", map[string]interface{}{"path": cw.path})
}
