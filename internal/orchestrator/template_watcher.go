package orchestrator

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"briefdesk/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// TemplateWatcher watches the template directory and reloads the
// registry when *.yaml files settle after a change. Rapid saves are
// debounced so an editor writing in chunks triggers one reload.
type TemplateWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	registry    *TemplateRegistry
	dir         string
	pending     map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewTemplateWatcher creates a watcher over the registry's directory.
func NewTemplateWatcher(registry *TemplateRegistry) (*TemplateWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &TemplateWatcher{
		watcher:     watcher,
		registry:    registry,
		dir:         registry.dir,
		pending:     make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a
// goroutine until Stop or context cancellation.
func (w *TemplateWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.Get(logging.CategoryTemplates).Warn("failed to create template dir %s: %v", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		logging.Get(logging.CategoryTemplates).Warn("template watch failed for %s: %v", w.dir, err)
	} else {
		logging.Templates("watching template directory: %s", w.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit.
func (w *TemplateWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryTemplates).Error("error closing template watcher: %v", err)
	}
	logging.Templates("template watcher stopped")
}

func (w *TemplateWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

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
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryTemplates).Error("template watcher error: %v", err)

		case <-ticker.C:
			w.processSettled()
		}
	}
}

func (w *TemplateWatcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".yaml") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.TemplatesDebug("template event %s on %s", event.Op, event.Name)
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// processSettled reloads the registry once every pending event is older
// than the debounce window.
func (w *TemplateWatcher) processSettled() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	now := time.Now()
	for _, eventTime := range w.pending {
		if now.Sub(eventTime) < w.debounceDur {
			w.mu.Unlock()
			return
		}
	}
	w.pending = make(map[string]time.Time)
	w.mu.Unlock()

	if err := w.registry.Reload(); err != nil {
		logging.Get(logging.CategoryTemplates).Error("template reload failed: %v", err)
	}
}
