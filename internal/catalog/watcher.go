package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Holder gives concurrent readers the current catalog and lets a watcher
// swap it when the file changes.
type Holder struct {
	mu      sync.RWMutex
	current *Catalog
}

// NewHolder wraps an initial catalog.
func NewHolder(c *Catalog) *Holder {
	return &Holder{current: c}
}

// Get returns the active catalog.
func (h *Holder) Get() *Catalog {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Set replaces the active catalog.
func (h *Holder) Set(c *Catalog) {
	h.mu.Lock()
	h.current = c
	h.mu.Unlock()
}

// Watcher reloads a catalog file into a Holder whenever it is written.
// A file that fails validation is logged and the previous catalog stays.
type Watcher struct {
	path     string
	holder   *Holder
	logger   *logrus.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	doneCh   chan struct{}
	onReload func(*Catalog)
}

// NewWatcher creates a watcher for path. The directory is watched rather
// than the file so editors that replace the file are handled.
func NewWatcher(path string, holder *Holder, logger *logrus.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		holder:   holder,
		logger:   logger,
		watcher:  fw,
		debounce: 200 * time.Millisecond,
		doneCh:   make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked after every successful reload.
func (w *Watcher) OnReload(fn func(*Catalog)) {
	w.onReload = fn
}

// Start runs the event loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Done is closed when the event loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer w.watcher.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Catalog watcher error")
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		w.logger.WithError(err).WithField("path", w.path).Warn("Catalog reload rejected, keeping previous catalog")
		return
	}
	w.holder.Set(c)
	w.logger.WithFields(logrus.Fields{
		"path":       w.path,
		"categories": len(c.Keys()),
		"tests":      len(c.Tests()),
	}).Info("Catalog reloaded")
	if w.onReload != nil {
		w.onReload(c)
	}
}
