package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefs-dev/sefs/pkg/embedding"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "managed")
	globalDB := filepath.Join(dir, "global.db")

	adapter := embedding.NewAdapter(embedding.NewLocalProvider(""))
	e, err := New(globalDB, root, adapter)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })
	return e, root
}

func runEngine(t *testing.T, e *Engine) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestStatus_ReportsRootAndCounts(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	runEngine(t, e)

	st, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, root, st.Root)
	assert.Equal(t, 0, st.FileCount)
}

func TestRescan_IngestsExistingFilesAndClusters(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	runEngine(t, e)

	require.NoError(t, os.WriteFile(filepath.Join(root, "dog.txt"), []byte("the dog barks loudly at night"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cat.txt"), []byte("a cat sleeps on the warm sofa"), 0o644))

	count, err := e.Rescan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	st, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.FileCount)
}

func TestSemanticSearch_RanksBySimilarity(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	runEngine(t, e)

	require.NoError(t, os.WriteFile(filepath.Join(root, "dog.txt"), []byte("the dog barks loudly at night"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "finance.txt"), []byte("quarterly budget planning notes"), 0o644))
	_, err := e.Rescan(context.Background())
	require.NoError(t, err)

	results, err := e.SemanticSearch(context.Background(), "a loud dog at night", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "dog.txt", results[0].Filename)
}

func TestSwitchRoot_MovesActiveRootAndRescans(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)
	runEngine(t, e)

	newRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(newRoot, "solo.txt"), []byte("the only document here"), 0o644))

	require.NoError(t, e.SwitchRoot(context.Background(), newRoot))
	assert.Equal(t, newRoot, e.Root())

	st, err := e.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.FileCount)
}

func TestSettings_RoundTrip(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	require.NoError(t, e.SetSetting(context.Background(), "provider", "local"))
	v, ok, err := e.Setting(context.Background(), "provider")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "local", v)
}

func TestWatcherChange_IngestsWithoutManualRescan(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	runEngine(t, e)

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.txt"), []byte("a freshly created note file"), 0o644))

	require.Eventually(t, func() bool {
		st, err := e.Status(context.Background())
		return err == nil && st.FileCount == 1
	}, 5*time.Second, 50*time.Millisecond)
}
