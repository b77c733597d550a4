// Package watcher turns raw filesystem notifications beneath a
// managed root into debounced, deduplicated change/delete callbacks
// (spec.md §4.7). Structure is grounded on the teacher's
// pkg/rag/strategy VectorStore.watchLoop: an fsnotify.Watcher feeding
// a per-path pending map drained by a single time.AfterFunc timer.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow is how long the watcher waits after the last event
// for a path before flushing it to a callback.
const debounceWindow = 1500 * time.Millisecond

type action int

const (
	actionChange action = iota
	actionDelete
)

// Gate reports whether the watcher should currently drop events: the
// sync engine implements this (its lock plus recently-synced set).
type Gate interface {
	Locked() bool
	RecentlySynced(path string) bool
}

// SupportChecker reports whether a path's extension is one the
// extractor handles, so the watcher can reject unsupported files
// before they ever reach the pipeline.
type SupportChecker func(path string) bool

// Watcher watches root recursively and invokes onChange/onDelete for
// files after they settle for debounceWindow.
type Watcher struct {
	root        string
	gate        Gate
	isSupported SupportChecker
	onChange    func(path string)
	onDelete    func(path string)

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]action
	order   []string
	timer   *time.Timer
}

// New builds a Watcher for root. onChange is invoked for created or
// modified files, onDelete for removed files, both in arrival order,
// after the debounce window elapses.
func New(root string, gate Gate, isSupported SupportChecker, onChange, onDelete func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:        root,
		gate:        gate,
		isSupported: isSupported,
		onChange:    onChange,
		onDelete:    onDelete,
		fsw:         fsw,
		pending:     make(map[string]action),
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Run drains fsnotify events until ctx is done. It blocks; callers
// should run it in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher: fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Debug("watcher: could not watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !w.accept(event) {
		return
	}

	if w.gate.Locked() || w.gate.RecentlySynced(event.Name) {
		return
	}

	act := actionChange
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		act = actionDelete
	}
	w.enqueue(event.Name, act)
}

// accept implements spec.md §4.7 step 1: reject directories,
// unsupported extensions, and hidden/temp filenames.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 && w.isSupported != nil && !w.isSupported(event.Name) {
		return false
	}
	return true
}

// enqueue records the latest action for path (last-action-wins),
// resets the flush timer, and starts a new one.
func (w *Watcher) enqueue(path string, act action) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.pending[path]; !exists {
		w.order = append(w.order, path)
	}
	w.pending[path] = act

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, w.flush)
}

// flush snapshots and clears the pending map, then invokes callbacks
// in arrival order (spec.md §4.7 step 4).
func (w *Watcher) flush() {
	w.mu.Lock()
	order := w.order
	pending := w.pending
	w.order = nil
	w.pending = make(map[string]action)
	w.mu.Unlock()

	for _, path := range order {
		act, ok := pending[path]
		if !ok {
			continue
		}
		switch act {
		case actionChange:
			safeCall(func() { w.onChange(path) }, path)
		case actionDelete:
			safeCall(func() { w.onDelete(path) }, path)
		}
	}
}

func safeCall(fn func(), path string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("watcher: callback panicked", "path", path, "recovered", r)
		}
	}()
	fn()
}
