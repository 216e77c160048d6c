// Package hotreload re-runs a handler when a watched file changes on disk.
package hotreload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handler is called once per debounced burst of changes to a watched file.
// Handlers never run concurrently with each other.
type Handler func(ctx context.Context, ev Event) error

type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

type Config struct {
	// DebounceTime coalesces bursts of writes (editors often write twice).
	DebounceTime time.Duration
}

func DefaultConfig() Config { return Config{DebounceTime: 500 * time.Millisecond} }

// Watcher watches individual files. It subscribes to the parent directory so
// files replaced by rename keep being observed.
type Watcher struct {
	cfg     Config
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	handlers   map[string]Handler
	dirs       map[string]struct{}
	debouncers map[string]*time.Timer
	stopChan   chan struct{}
	stopOnce   sync.Once

	// dispatch serializes handler runs; pending counts scheduled and running
	// handlers so a stopping Run can wait for them.
	dispatch sync.Mutex
	pending  sync.WaitGroup
}

func New(cfg Config, logger *slog.Logger) (*Watcher, error) {
	if cfg.DebounceTime <= 0 {
		cfg.DebounceTime = DefaultConfig().DebounceTime
	}
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		cfg:        cfg,
		logger:     logger,
		watcher:    fw,
		handlers:   map[string]Handler{},
		dirs:       map[string]struct{}{},
		debouncers: map[string]*time.Timer{},
		stopChan:   make(chan struct{}),
	}, nil
}

// Watch registers h for changes to path.
func (w *Watcher) Watch(path string, h Handler) error {
	if h == nil {
		return errors.New("nil handler")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[dir]; !ok {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = struct{}{}
	}
	w.handlers[abs] = h
	w.logger.Info("watching file", "path", abs)
	return nil
}

// Run dispatches events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return ctx.Err()
		case <-w.stopChan:
			w.stopTimers()
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleFileEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
		return
	}
	path := filepath.Clean(ev.Name)
	w.mu.Lock()
	defer w.mu.Unlock()
	h, ok := w.handlers[path]
	if !ok {
		return
	}
	w.logger.Debug("file event", "event", ev.Op.String(), "file", path)
	if t, exists := w.debouncers[path]; exists && t.Stop() {
		w.pending.Done()
	}
	op := ev.Op
	w.pending.Add(1)
	w.debouncers[path] = time.AfterFunc(w.cfg.DebounceTime, func() {
		defer w.pending.Done()
		w.dispatch.Lock()
		defer w.dispatch.Unlock()
		if ctx.Err() != nil || w.stopping() {
			return
		}
		if err := h(ctx, Event{Path: path, Op: op, Timestamp: time.Now()}); err != nil {
			w.logger.Error("reload failed", "file", path, "error", err)
		}
	})
}

func (w *Watcher) stopping() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

// stopTimers cancels pending runs and waits for the one in progress.
func (w *Watcher) stopTimers() {
	w.mu.Lock()
	for p, t := range w.debouncers {
		if t.Stop() {
			w.pending.Done()
		}
		delete(w.debouncers, p)
	}
	w.mu.Unlock()
	w.pending.Wait()
}

func (w *Watcher) Close() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	return w.watcher.Close()
}
