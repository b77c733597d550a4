package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefs-dev/sefs/pkg/engine"
	"github.com/sefs-dev/sefs/pkg/model"
)

type fakeEngine struct {
	status   engine.Status
	files    []*model.FileRecord
	search   []engine.SearchResult
	rescanN  int
	switched string
	bus      chan model.Broadcast
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{bus: make(chan model.Broadcast, 4)}
}

func (f *fakeEngine) Status(context.Context) (engine.Status, error) { return f.status, nil }
func (f *fakeEngine) ListFiles(context.Context) ([]*model.FileRecord, error) {
	return f.files, nil
}
func (f *fakeEngine) ListClusters(context.Context) ([]*model.ClusterRecord, error) { return nil, nil }
func (f *fakeEngine) ListEvents(context.Context, int) ([]*model.Event, error)      { return nil, nil }
func (f *fakeEngine) SemanticSearch(context.Context, string, int) ([]engine.SearchResult, error) {
	return f.search, nil
}
func (f *fakeEngine) Related(context.Context, int64, int) ([]engine.SearchResult, error) {
	return f.search, nil
}
func (f *fakeEngine) Rescan(context.Context) (int, error) { return f.rescanN, nil }
func (f *fakeEngine) SwitchRoot(_ context.Context, newRoot string) error {
	f.switched = newRoot
	return nil
}
func (f *fakeEngine) Subscribe() (<-chan model.Broadcast, func()) {
	return f.bus, func() { close(f.bus) }
}

func TestGetStatus_ReturnsEngineStatus(t *testing.T) {
	t.Parallel()
	fe := newFakeEngine()
	fe.status = engine.Status{Root: "/data/docs", FileCount: 3, ClusterCount: 2}
	srv := New(fe)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got engine.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, fe.status, got)
}

func TestListFiles_FormatsHumanReadableSize(t *testing.T) {
	t.Parallel()
	fe := newFakeEngine()
	fe.files = []*model.FileRecord{{ID: 1, Filename: "dog.txt", SizeBytes: 2048}}
	srv := New(fe)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data       []fileView          `json:"data"`
		Pagination PaginationMetadata `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Data, 1)
	assert.Equal(t, "2.048kB", got.Data[0].Size)
	assert.Equal(t, 1, got.Pagination.TotalCount)
}

func TestSemanticSearch_RequiresQueryParam(t *testing.T) {
	t.Parallel()
	srv := New(newFakeEngine())

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRescan_ReturnsProcessedCount(t *testing.T) {
	t.Parallel()
	fe := newFakeEngine()
	fe.rescanN = 7
	srv := New(fe)

	req := httptest.NewRequest(http.MethodPost, "/api/rescan", nil)
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed":7`)
}

func TestSwitchRoot_InvokesEngine(t *testing.T) {
	t.Parallel()
	fe := newFakeEngine()
	srv := New(fe)

	body := `{"path":"/new/root"}`
	req := httptest.NewRequest(http.MethodPost, "/api/root", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/new/root", fe.switched)
}
