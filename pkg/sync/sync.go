// Package sync reconciles the on-disk folder layout with the
// clustering result: it moves files into per-cluster subdirectories
// under the managed root (spec.md §4.6).
package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sefs-dev/sefs/pkg/model"
	sefspath "github.com/sefs-dev/sefs/pkg/path"
)

// settleWindow is how long the engine keeps the sync lock held after
// the last move, absorbing filesystem notifications the moves
// themselves triggered (spec.md §4.6 step 7).
const settleWindow = 2500 * time.Millisecond

// recentlySyncedTTL is how long a path stays in the recently-synced
// set after a move, independent of the lock (spec.md §4.6).
const recentlySyncedTTL = 5 * time.Second

// PlanEntry is one file to place during a sync pass: its id, its best
// known source location candidates, its filename, and the cluster
// folder name it belongs in.
type PlanEntry struct {
	FileID       int64
	CurrentPath  string
	OriginalPath string
	Filename     string
	ClusterName  string
}

// Move records one file relocation actually performed.
type Move struct {
	FileID int64
	From   string
	To     string
}

// Engine owns the sync lock and the recently-synced TTL set shared
// between the Sync Engine and the Watcher: while the lock is held, or
// while a path is in the recently-synced set, the watcher must drop
// filesystem events for it (spec.md §4.6, §4.7).
type Engine struct {
	root string

	mu     sync.Mutex
	locked bool
	recent map[string]time.Time
}

// New returns a sync Engine rooted at root.
func New(root string) *Engine {
	return &Engine{root: root, recent: make(map[string]time.Time)}
}

// Locked reports whether a sync pass currently holds the lock.
func (e *Engine) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// RecentlySynced reports whether path was touched by a sync move
// within the TTL window, pruning expired entries as it goes.
func (e *Engine) RecentlySynced(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.recent[path]
	if !ok {
		return false
	}
	if time.Since(t) > recentlySyncedTTL {
		delete(e.recent, path)
		return false
	}
	return true
}

func (e *Engine) markRecent(paths ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	for _, p := range paths {
		e.recent[p] = now
	}
}

func (e *Engine) lock() {
	e.mu.Lock()
	e.locked = true
	e.mu.Unlock()
}

func (e *Engine) unlock() {
	e.mu.Lock()
	e.locked = false
	e.mu.Unlock()
}

// SyncFilesToFolders executes spec.md §4.6's steps 1–7: it locks,
// ensures cluster folders exist, moves every plan entry into place,
// prunes emptied-out subdirectories, then settles and unlocks.
func (e *Engine) SyncFilesToFolders(ctx context.Context, plan []PlanEntry, clusterNames []string) []Move {
	e.lock()
	defer e.settleAndUnlock()

	if err := e.ensureClusterFolders(clusterNames); err != nil {
		slog.Error("sync: failed to create cluster folders", "error", err)
		return nil
	}

	var moves []Move
	for _, entry := range plan {
		if ctx.Err() != nil {
			break
		}
		move, err := e.syncOne(entry)
		if err != nil {
			slog.Warn("sync: skipping file", "file_id", entry.FileID, "error", err)
			continue
		}
		if move != nil {
			moves = append(moves, *move)
		}
	}

	e.pruneEmptyDirs(clusterNames)
	return moves
}

func (e *Engine) ensureClusterFolders(names []string) error {
	folders := append(append([]string{}, names...), model.UncategorisedClusterName)
	for _, name := range folders {
		dir := filepath.Join(e.root, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cluster folder %q: %w", name, err)
		}
	}
	return nil
}

// resolveSource finds the best existing source path for entry, in the
// order spec.md §4.6 step 3 specifies.
func (e *Engine) resolveSource(entry PlanEntry) (string, bool) {
	candidates := []string{
		entry.CurrentPath,
		entry.OriginalPath,
		filepath.Join(e.root, entry.Filename),
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

func (e *Engine) syncOne(entry PlanEntry) (*Move, error) {
	source, ok := e.resolveSource(entry)
	if !ok {
		return nil, fmt.Errorf("no existing source for file %d (%s)", entry.FileID, entry.Filename)
	}

	target, err := e.resolveTarget(source, entry)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return nil, nil // already in place
	}

	e.markRecent(source, target)
	if err := moveFile(source, target); err != nil {
		return nil, fmt.Errorf("move %q to %q: %w", source, target, err)
	}
	return &Move{FileID: entry.FileID, From: source, To: target}, nil
}

// resolveTarget computes root/cluster_name/filename, validated to stay
// within root, and disambiguates a name collision with a numbered
// suffix. Returns "" with no error when source already equals target.
func (e *Engine) resolveTarget(source string, entry PlanEntry) (string, error) {
	rel := filepath.Join(entry.ClusterName, entry.Filename)
	target, err := sefspath.ValidatePathInDirectory(rel, e.root)
	if err != nil {
		return "", fmt.Errorf("invalid target for cluster %q: %w", entry.ClusterName, err)
	}

	absSource, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}
	if absSource == target {
		return "", nil
	}

	return uniquify(target), nil
}

// uniquify appends _1, _2, … before the extension until the path does
// not already exist (spec.md §4.6 step 4).
func uniquify(target string) string {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}
	dir := filepath.Dir(target)
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(filepath.Base(target), ext)

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, stem+"_"+strconv.Itoa(i)+ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// moveFile renames source to target, falling back to copy+unlink when
// rename fails across filesystem boundaries (spec.md §4.6 step 5). No
// existing library in the corpus performs an atomic move of an
// existing file across devices — natefinch/atomic instead atomically
// publishes a brand-new file via temp-then-rename, which does not fit
// here — so this is implemented directly.
func moveFile(source, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Rename(source, target); err == nil {
		return nil
	}

	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(source)
}

// pruneEmptyDirs removes empty subdirectories under root, excluding
// the cluster folders themselves even when they end up empty (spec.md
// §4.6 step 6).
func (e *Engine) pruneEmptyDirs(clusterNames []string) {
	protect := make(map[string]bool, len(clusterNames)+1)
	for _, n := range clusterNames {
		protect[n] = true
	}
	protect[model.UncategorisedClusterName] = true

	entries, err := os.ReadDir(e.root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || protect[entry.Name()] {
			continue
		}
		dir := filepath.Join(e.root, entry.Name())
		removeIfEmpty(dir)
	}
}

func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(dir)
}

func (e *Engine) settleAndUnlock() {
	time.Sleep(settleWindow)
	e.unlock()
}
