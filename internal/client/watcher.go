package client

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	defaultSettleTimeout = 2 * time.Second
	eventBufferSize      = 256
)

// FilterCallback returns true if the event for path should be dropped.
type FilterCallback func(path string) bool

// Watcher collapses bursts of filesystem events under a root into one trigger.
// Every event restarts the settle timer; when it fires the changed paths are
// delivered together.
type Watcher struct {
	root          string
	realRoot      string
	rawEvents     chan notify.EventInfo
	triggers      chan []string
	filter        FilterCallback
	settleTimeout time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

func NewWatcher(root string) *Watcher {
	return &Watcher{
		root:          root,
		triggers:      make(chan []string, 1),
		settleTimeout: defaultSettleTimeout,
		pending:       make(map[string]struct{}),
		done:          make(chan struct{}),
	}
}

// SetSettleTimeout sets how long the tree must stay quiet before a trigger.
func (w *Watcher) SetSettleTimeout(timeout time.Duration) {
	w.settleTimeout = timeout
}

// FilterPaths sets a callback run on every raw event before debouncing.
func (w *Watcher) FilterPaths(callback FilterCallback) {
	w.filter = callback
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("file watcher start", "dir", w.root)

	// notify reports resolved paths
	realRoot, err := filepath.EvalSymlinks(w.root)
	if err != nil {
		return err
	}
	w.realRoot = realRoot

	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	if err := notify.Watch(filepath.Join(realRoot, "..."), w.rawEvents, notify.All); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.filterEvents(ctx)

	return nil
}

func (w *Watcher) Stop() {
	slog.Info("file watcher stopping")

	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	slog.Info("file watcher stopped")
}

// Triggers delivers the sorted set of paths changed during one burst.
func (w *Watcher) Triggers() <-chan []string {
	return w.triggers
}

func (w *Watcher) filterEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}

			path := w.rootPath(event.Path())
			if w.filter != nil && w.filter(path) {
				continue
			}
			w.debounce(path)
		}
	}
}

// rootPath maps a resolved event path back under the configured root.
func (w *Watcher) rootPath(path string) string {
	rel, err := filepath.Rel(w.realRoot, path)
	if err != nil {
		return path
	}
	return filepath.Join(w.root, rel)
}

func (w *Watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settleTimeout, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	select {
	case w.triggers <- paths:
		slog.Debug("file watcher", "changed", len(paths))
	default:
		// a queued trigger already covers these paths
		slog.Debug("file watcher coalesced", "changed", len(paths))
	}
}
