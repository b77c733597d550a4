// Package engine is SEFS's composition root: it owns the global and
// per-root stores, wires the watcher, pipeline, scheduler and event
// bus together, and drives the single control-plane goroutine that
// spec.md §5 describes as "a single-threaded cooperative scheduler
// for the control plane" with blocking work dispatched onto ordinary
// goroutines.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sefs-dev/sefs/pkg/embedding"
	"github.com/sefs-dev/sefs/pkg/eventbus"
	"github.com/sefs-dev/sefs/pkg/extractor"
	"github.com/sefs-dev/sefs/pkg/metrics"
	"github.com/sefs-dev/sefs/pkg/model"
	"github.com/sefs-dev/sefs/pkg/pipeline"
	"github.com/sefs-dev/sefs/pkg/scheduler"
	"github.com/sefs-dev/sefs/pkg/store"
	syncengine "github.com/sefs-dev/sefs/pkg/sync"
	"github.com/sefs-dev/sefs/pkg/watcher"
)

// rootDBName is the per-root metadata store filename (spec.md §6).
const rootDBName = ".sefs.db"

// commandQueueDepth bounds the control-plane command channel. It is
// generous rather than tight: a full queue means the watcher callbacks
// are producing faster than the engine loop can even launch the
// goroutines that do the real work, which should never happen in
// practice.
const commandQueueDepth = 256

// cmd is one unit of control-plane work: a closure the engine
// goroutine hands off to its own goroutine, per spec.md §5's rule that
// suspension points (store calls, provider calls, filesystem I/O)
// never run inline on the control-plane loop.
type cmd func()

// Engine is the daemon's long-lived state: one managed root at a
// time, swappable via SwitchRoot.
type Engine struct {
	global  *store.GlobalStore
	embed   *embedding.Adapter
	extract *extractor.Registry
	bus     *eventbus.Bus
	metrics *metrics.Recorder

	mu       sync.RWMutex
	root     string
	rootDB   *store.RootStore
	sync     *syncengine.Engine
	pipeline *pipeline.Pipeline
	watcher  *watcher.Watcher
	watchCancel context.CancelFunc
	scheduler *scheduler.Scheduler

	cmdCh chan cmd
	wg    sync.WaitGroup
}

// New builds an Engine bound to the given root directory. The global
// store is opened once for the process lifetime; the per-root store
// lives at <root>/.sefs.db and is swapped wholesale by SwitchRoot.
func New(globalDBPath, root string, embed *embedding.Adapter) (*Engine, error) {
	global, err := store.OpenGlobalStore(globalDBPath)
	if err != nil {
		return nil, fmt.Errorf("engine: open global store: %w", err)
	}

	e := &Engine{
		global:  global,
		embed:   embed,
		extract: extractor.NewRegistry(),
		bus:     eventbus.New(),
		metrics: metrics.New(),
		cmdCh:   make(chan cmd, commandQueueDepth),
	}

	if err := e.mountRoot(root); err != nil {
		global.Close()
		return nil, err
	}
	e.scheduler = scheduler.New(e.runFullRecluster)

	return e, nil
}

// mountRoot opens (creating if needed) the root directory and its
// per-root store, and builds the pipeline/sync/watcher trio bound to
// it. Caller holds no lock; used both from New and from SwitchRoot.
func (e *Engine) mountRoot(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("engine: create root %s: %w", root, err)
	}

	rootDB, err := store.OpenRootStore(filepath.Join(root, rootDBName))
	if err != nil {
		return fmt.Errorf("engine: open root store: %w", err)
	}

	syncEng := syncengine.New(root)
	pl := pipeline.New(root, rootDB, e.extract, e.embed, syncEng, e.bus, e.metrics)

	w, err := watcher.New(root, syncEng, extractor.IsSupported,
		func(path string) { e.post(func() { e.onWatcherChange(path) }) },
		func(path string) { e.post(func() { e.onWatcherDelete(path) }) },
	)
	if err != nil {
		rootDB.Close()
		return fmt.Errorf("engine: start watcher: %w", err)
	}

	e.mu.Lock()
	e.root = root
	e.rootDB = rootDB
	e.sync = syncEng
	e.pipeline = pl
	e.watcher = w
	e.mu.Unlock()
	return nil
}

// post hands a unit of control-plane work to the engine loop. It
// never runs fn inline; its callers are the watcher's change and
// delete callbacks (the scheduler runs runFullRecluster from its own
// timer without posting).
func (e *Engine) post(fn cmd) {
	select {
	case e.cmdCh <- fn:
	default:
		slog.Warn("engine: command queue full, dropping", "queue_depth", commandQueueDepth)
	}
}

// Run starts the watcher and the control-plane loop; it blocks until
// ctx is cancelled, draining in-flight commands before returning.
func (e *Engine) Run(ctx context.Context) {
	e.mu.RLock()
	w := e.watcher
	e.mu.RUnlock()

	watchCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.watchCancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		w.Run(watchCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			cancel()
			e.wg.Wait()
			return
		case c := <-e.cmdCh:
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				c()
			}()
		}
	}
}

func (e *Engine) onWatcherChange(path string) {
	e.mu.RLock()
	pl := e.pipeline
	e.mu.RUnlock()

	ctx := context.Background()
	id, err := pl.ProcessFile(ctx, path)
	if err != nil {
		slog.Warn("engine: ingest failed", "path", path, "error", err)
		return
	}
	assigned, err := pl.TryIncrementalAssign(ctx, id)
	if err != nil {
		slog.Warn("engine: incremental assign failed", "path", path, "error", err)
	}
	if !assigned {
		e.scheduler.Request()
	}
}

func (e *Engine) onWatcherDelete(path string) {
	e.mu.RLock()
	pl := e.pipeline
	e.mu.RUnlock()

	if err := pl.RemoveFile(context.Background(), path); err != nil {
		slog.Warn("engine: remove failed", "path", path, "error", err)
	}
}

func (e *Engine) runFullRecluster() {
	e.mu.RLock()
	pl := e.pipeline
	e.mu.RUnlock()

	if err := pl.FullRecluster(context.Background()); err != nil {
		slog.Error("engine: full recluster failed", "error", err)
	}
}

// Shutdown closes the global and active root stores. Callers should
// have already cancelled Run's context and observed it return.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	if e.rootDB != nil {
		if err := e.rootDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.global.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("engine: shutdown: %v", errs)
	}
	return nil
}

// Bus exposes the event bus for SSE subscribers (pkg/api).
func (e *Engine) Bus() *eventbus.Bus { return e.bus }

// Metrics exposes the process-wide pipeline timing recorder (shared
// across root switches, like the original's module-level metrics
// singleton).
func (e *Engine) Metrics() *metrics.Recorder { return e.metrics }

// Root returns the currently managed root directory.
func (e *Engine) Root() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

func (e *Engine) emit(typ model.EventType, detail string) {
	e.bus.Publish(model.Broadcast{Type: typ, Detail: detail})
}
