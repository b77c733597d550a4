package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sefs-dev/sefs/pkg/model"
	"github.com/sefs-dev/sefs/pkg/store"
)

// SwitchRoot implements spec.md §6's "switch_root" op: stop the
// current watcher, swap the per-root database, start the watcher on
// the new root, then run a full scan of it. The new watcher is already
// running while the scan runs, so changes made during the scan reach
// its callbacks as well. It must not be called
// concurrently with itself; the engine does not serialize calls
// (pkg/api invokes it directly from the request handler).
func (e *Engine) SwitchRoot(ctx context.Context, newRoot string) error {
	e.emit(model.EventRootSwitching, newRoot)

	e.mu.Lock()
	oldDB := e.rootDB
	cancelWatch := e.watchCancel
	e.mu.Unlock()

	if cancelWatch != nil {
		cancelWatch()
	}
	if oldDB != nil {
		if err := oldDB.Close(); err != nil {
			slog.Warn("engine: close old root store during switch", "error", err)
		}
	}

	if err := e.mountRoot(newRoot); err != nil {
		return fmt.Errorf("engine: switch_root: %w", err)
	}

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

	if _, err := e.Rescan(ctx); err != nil {
		return fmt.Errorf("engine: switch_root full scan: %w", err)
	}

	if err := e.global.Set(ctx, store.SettingRootFolder, newRoot); err != nil {
		slog.Warn("engine: persist new root folder setting", "error", err)
	}

	e.emit(model.EventRootSwitched, newRoot)
	return nil
}
