package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefs-dev/sefs/pkg/model"
)

func newTestRootStore(t *testing.T) *RootStore {
	t.Helper()
	s, err := OpenRootStore(filepath.Join(t.TempDir(), "root.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertFileByOriginalPath_InsertThenUpdate(t *testing.T) {
	t.Parallel()
	s := newTestRootStore(t)
	ctx := context.Background()

	f := &model.FileRecord{
		CurrentPath:  "/root/notes.txt",
		OriginalPath: "/root/notes.txt",
		Filename:     "notes.txt",
		ContentHash:  "abc123",
		Embedding:    []float32{1, 2, 3},
		ModelTag:     "local/hashing-v1",
		ClusterID:    model.UncategorisedClusterID,
	}
	id, err := s.UpsertFileByOriginalPath(ctx, f)
	require.NoError(t, err)
	assert.NotZero(t, id)

	f.CurrentPath = "/root/Work/notes.txt"
	f.ContentHash = "def456"
	id2, err := s.UpsertFileByOriginalPath(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, id, id2, "same original_path should update, not insert a new row")

	got, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/root/Work/notes.txt", got.CurrentPath)
	assert.Equal(t, "def456", got.ContentHash)
	assert.Equal(t, []float32{1, 2, 3}, got.Embedding)
}

func TestGetByHash_FindsMostRecentMatch(t *testing.T) {
	t.Parallel()
	s := newTestRootStore(t)
	ctx := context.Background()

	_, err := s.UpsertFileByOriginalPath(ctx, &model.FileRecord{
		CurrentPath: "/root/a.txt", OriginalPath: "/root/a.txt", Filename: "a.txt", ContentHash: "sharedhash",
	})
	require.NoError(t, err)

	got, err := s.GetByHash(ctx, "sharedhash")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/root/a.txt", got.CurrentPath)

	missing, err := s.GetByHash(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClearClusters_ResetsFilesAndDropsClusterRows(t *testing.T) {
	t.Parallel()
	s := newTestRootStore(t)
	ctx := context.Background()

	clusterID, err := s.UpsertCluster(ctx, &model.ClusterRecord{Name: "Receipts", FolderPath: "Receipts"})
	require.NoError(t, err)

	fileID, err := s.UpsertFileByOriginalPath(ctx, &model.FileRecord{
		CurrentPath: "/root/Receipts/r1.txt", OriginalPath: "/root/r1.txt", Filename: "r1.txt",
		ContentHash: "h1", ClusterID: clusterID,
	})
	require.NoError(t, err)

	require.NoError(t, s.ClearClusters(ctx))

	clusters, err := s.ListClusters(ctx)
	require.NoError(t, err)
	assert.Empty(t, clusters)

	f, err := s.GetByID(ctx, fileID)
	require.NoError(t, err)
	assert.Equal(t, int64(model.UncategorisedClusterID), f.ClusterID)
}

func TestBulkUpdateClusterID(t *testing.T) {
	t.Parallel()
	s := newTestRootStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.UpsertFileByOriginalPath(ctx, &model.FileRecord{
			CurrentPath: filepath.Join("/root", string(rune('a'+i))+".txt"),
			OriginalPath: filepath.Join("/root", string(rune('a'+i))+".txt"),
			Filename:    string(rune('a'+i)) + ".txt",
			ContentHash: string(rune('a' + i)),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, s.BulkUpdateClusterID(ctx, ids, 7))

	for _, id := range ids {
		f, err := s.GetByID(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 7, f.ClusterID)
	}
}

func TestUpsertCluster_InsertThenUpdateByName(t *testing.T) {
	t.Parallel()
	s := newTestRootStore(t)
	ctx := context.Background()

	id, err := s.UpsertCluster(ctx, &model.ClusterRecord{
		Name: "Invoices", FolderPath: "Invoices", Centroid: []float32{0.1, 0.2}, FileCount: 2,
	})
	require.NoError(t, err)

	id2, err := s.UpsertCluster(ctx, &model.ClusterRecord{
		Name: "Invoices", FolderPath: "Invoices", Centroid: []float32{0.3, 0.4}, FileCount: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	got, err := s.GetCluster(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FileCount)
	assert.Equal(t, []float32{0.3, 0.4}, got.Centroid)
}

func TestAddEventAndRecentEvents_NewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestRootStore(t)
	ctx := context.Background()

	for _, typ := range []model.EventType{model.EventScanStart, model.EventFileAdded, model.EventScanComplete} {
		_, err := s.AddEvent(ctx, &model.Event{Type: typ})
		require.NoError(t, err)
	}

	events, err := s.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventScanComplete, events[0].Type)
	assert.Equal(t, model.EventFileAdded, events[1].Type)
}

func TestGlobalStore_SetGetAll(t *testing.T) {
	t.Parallel()
	gs, err := OpenGlobalStore(filepath.Join(t.TempDir(), "global.db"))
	require.NoError(t, err)
	t.Cleanup(func() { gs.Close() })
	ctx := context.Background()

	_, ok, err := gs.Get(ctx, SettingProviderKind)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, gs.Set(ctx, SettingProviderKind, "local"))
	require.NoError(t, gs.Set(ctx, SettingRootFolder, "/home/user/docs"))
	require.NoError(t, gs.Set(ctx, SettingProviderKind, "remote"))

	v, ok, err := gs.Get(ctx, SettingProviderKind)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "remote", v)

	all, err := gs.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "remote", all[SettingProviderKind])
	assert.Equal(t, "/home/user/docs", all[SettingRootFolder])
}
