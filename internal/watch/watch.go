// Package watch reports debounced file changes under a set of directories.
//
// Editors and task tools rewrite files in bursts (truncate, write, chmod,
// rename-over). The watcher coalesces every event seen within the debounce
// window into a single callback carrying the distinct paths that changed.
package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/taskexplorer/internal/logging"
)

// DefaultDebounce is the quiet period before a batch of changes is reported.
const DefaultDebounce = 200 * time.Millisecond

// Errors returned by the watcher.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
)

// Handler receives the sorted, distinct paths changed during one window.
type Handler func(paths []string)

// Filter decides whether a changed path is reported.
type Filter func(path string) bool

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Zero reports every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.delay = d
		}
	}
}

// WithFilter restricts reported paths.
func WithFilter(f Filter) Option {
	return func(w *Watcher) { w.filter = f }
}

// WithLogger sets the logger used for watch errors.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l.WithComponent("watch")
		}
	}
}

// Watcher wraps fsnotify with path filtering and debouncing.
type Watcher struct {
	mu sync.Mutex

	fs      *fsnotify.Watcher
	handler Handler
	filter  Filter
	delay   time.Duration
	log     *logging.Logger

	paths   map[string]bool
	pending map[string]bool
	timer   *time.Timer

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New starts a watcher that calls handler for each batch of changes.
func New(handler Handler, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:      fsw,
		handler: handler,
		delay:   DefaultDebounce,
		log:     logging.Null(),
		paths:   make(map[string]bool),
		pending: make(map[string]bool),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Add watches a directory (non-recursively). A missing directory is
// reported as os.ErrNotExist.
func (w *Watcher) Add(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[abs] {
		return ErrAlreadyWatching
	}
	if err := w.fs.Add(abs); err != nil {
		return err
	}
	w.paths[abs] = true
	return nil
}

// Paths returns the watched directories, sorted.
func (w *Watcher) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Close stops the watcher. Pending changes are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fs.Close()
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			w.record(ev.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error: %v", err)
		}
	}
}

func (w *Watcher) record(path string) {
	if w.filter != nil && !w.filter(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.pending[path] = true

	if w.delay == 0 {
		go w.fire()
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.delay, w.fire)
		return
	}
	w.timer.Reset(w.delay)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	sort.Strings(paths)
	w.log.Debug("%d paths changed", len(paths))
	w.handler(paths)
}

// MatchBase returns a filter accepting paths whose base name matches any of
// the glob patterns.
func MatchBase(patterns ...string) Filter {
	return func(path string) bool {
		name := filepath.Base(path)
		for _, p := range patterns {
			if ok, err := filepath.Match(p, name); err == nil && ok {
				return true
			}
		}
		return false
	}
}
