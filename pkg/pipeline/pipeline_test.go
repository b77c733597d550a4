package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefs-dev/sefs/pkg/embedding"
	"github.com/sefs-dev/sefs/pkg/eventbus"
	"github.com/sefs-dev/sefs/pkg/extractor"
	"github.com/sefs-dev/sefs/pkg/metrics"
	"github.com/sefs-dev/sefs/pkg/store"
	"github.com/sefs-dev/sefs/pkg/sync"
)

func newTestPipeline(t *testing.T) (*Pipeline, string, *store.RootStore) {
	t.Helper()
	root := t.TempDir()
	st, err := store.OpenRootStore(filepath.Join(t.TempDir(), "root.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	adapter := embedding.NewAdapter(embedding.NewLocalProvider(""))
	syncEng := sync.New(root)
	bus := eventbus.New()
	reg := extractor.NewRegistry()

	p := New(root, st, reg, adapter, syncEng, bus, metrics.New())
	return p, root, st
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProcessFile_InsertsNewRecord(t *testing.T) {
	t.Parallel()
	p, root, st := newTestPipeline(t)
	ctx := context.Background()

	path := filepath.Join(root, "dog.txt")
	writeTestFile(t, path, "the dog barks loudly at night")

	id, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)
	assert.NotZero(t, id)

	f, err := st.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "dog.txt", f.Filename)
	assert.True(t, f.HasEmbedding())
}

func TestProcessFile_RejectsUnsupportedExtension(t *testing.T) {
	t.Parallel()
	p, root, _ := newTestPipeline(t)
	path := filepath.Join(root, "image.png")
	writeTestFile(t, path, "binary-ish")

	_, err := p.ProcessFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestProcessFile_RelocationUpdatesExistingRecordInsteadOfDuplicating(t *testing.T) {
	t.Parallel()
	p, root, st := newTestPipeline(t)
	ctx := context.Background()

	original := filepath.Join(root, "notes.txt")
	writeTestFile(t, original, "quarterly budget planning notes")
	id, err := p.ProcessFile(ctx, original)
	require.NoError(t, err)

	moved := filepath.Join(root, "Work", "notes.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(moved), 0o755))
	require.NoError(t, os.Rename(original, moved))

	id2, err := p.ProcessFile(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	all, err := st.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, moved, all[0].CurrentPath)
}

func TestRemoveFile_DeletesUntrackedMoveOnlyWhenTrulyGone(t *testing.T) {
	t.Parallel()
	p, root, st := newTestPipeline(t)
	ctx := context.Background()

	path := filepath.Join(root, "temp.txt")
	writeTestFile(t, path, "scratch content")
	id, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	require.NoError(t, p.RemoveFile(ctx, path))

	f, err := st.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestFullRecluster_SingleFileYieldsGeneralCluster(t *testing.T) {
	t.Parallel()
	p, root, st := newTestPipeline(t)
	ctx := context.Background()

	path := filepath.Join(root, "solo.txt")
	writeTestFile(t, path, "the only document in this collection")
	_, err := p.ProcessFile(ctx, path)
	require.NoError(t, err)

	require.NoError(t, p.FullRecluster(ctx))

	clusters, err := st.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, "General", clusters[0].Name)
}

func TestFullRecluster_KeepsBothRecordsForTwoUnrelatedDocuments(t *testing.T) {
	t.Parallel()
	p, root, st := newTestPipeline(t)
	ctx := context.Background()

	dog := filepath.Join(root, "dog.txt")
	writeTestFile(t, dog, "the dog barks loudly at night")
	cat := filepath.Join(root, "cat.txt")
	writeTestFile(t, cat, "a cat sleeps on the warm sofa")

	_, err := p.ProcessFile(ctx, dog)
	require.NoError(t, err)
	_, err = p.ProcessFile(ctx, cat)
	require.NoError(t, err)

	require.NoError(t, p.FullRecluster(ctx))

	all, err := st.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
