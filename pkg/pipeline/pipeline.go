// Package pipeline is SEFS's ingestion and reclustering core: it
// glues the extractor, embedding adapter, metadata store, clusterer,
// namer, and sync engine together into the operations spec.md §4.8–
// §4.10 define.
package pipeline

import (
	"context"
	"time"

	"github.com/sefs-dev/sefs/pkg/cluster"
	"github.com/sefs-dev/sefs/pkg/embedding"
	"github.com/sefs-dev/sefs/pkg/eventbus"
	"github.com/sefs-dev/sefs/pkg/extractor"
	"github.com/sefs-dev/sefs/pkg/metrics"
	"github.com/sefs-dev/sefs/pkg/model"
	"github.com/sefs-dev/sefs/pkg/namer"
	"github.com/sefs-dev/sefs/pkg/store"
	"github.com/sefs-dev/sefs/pkg/sync"
)

// Extractor is the subset of *extractor.Registry the pipeline needs,
// narrowed for testability.
type Extractor interface {
	Extract(path string) extractor.Result
}

// Store is the subset of *store.RootStore the pipeline drives.
type Store interface {
	UpsertFileByOriginalPath(ctx context.Context, f *model.FileRecord) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.FileRecord, error)
	GetByPath(ctx context.Context, path string) (*model.FileRecord, error)
	GetByHash(ctx context.Context, hash string) (*model.FileRecord, error)
	ListAll(ctx context.Context) ([]*model.FileRecord, error)
	ListByCluster(ctx context.Context, clusterID int64) ([]*model.FileRecord, error)
	UpdateClusterID(ctx context.Context, fileID, clusterID int64) error
	UpdateCoords(ctx context.Context, fileID int64, x, y float64) error
	UpdateEmbedding(ctx context.Context, fileID int64, vec []float32, modelTag string) error
	UpdatePaths(ctx context.Context, fileID int64, currentPath, originalPath, filename string) error
	DeleteFile(ctx context.Context, fileID int64) error
	BulkUpdateClusterID(ctx context.Context, fileIDs []int64, clusterID int64) error
	ClearClusters(ctx context.Context) error
	UpsertCluster(ctx context.Context, c *model.ClusterRecord) (int64, error)
	GetCluster(ctx context.Context, id int64) (*model.ClusterRecord, error)
	ListClusters(ctx context.Context) ([]*model.ClusterRecord, error)
	AddEvent(ctx context.Context, ev *model.Event) (int64, error)
}

var _ Store = (*store.RootStore)(nil)
var _ Extractor = (*extractor.Registry)(nil)

// summarizer mirrors namer's provider dependency so the pipeline can
// build a fresh Namer per recluster run without importing the
// embedding package's concrete Adapter type into namer itself.
type summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type adapterSummarizer struct{ adapter *embedding.Adapter }

func (a adapterSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return a.adapter.GenerateSummary(ctx, text), nil
}

// Pipeline is the stateful orchestrator bound to one managed root.
type Pipeline struct {
	root      string
	store     Store
	extract   Extractor
	embed     *embedding.Adapter
	syncEng   *sync.Engine
	bus       *eventbus.Bus
	namerDeps summarizer
	metrics   *metrics.Recorder
}

// New builds a Pipeline rooted at root. m records per-stage timings
// for the status op (pkg/metrics); pass metrics.New() unless sharing a
// recorder across roots.
func New(root string, st Store, extract Extractor, embed *embedding.Adapter, syncEng *sync.Engine, bus *eventbus.Bus, m *metrics.Recorder) *Pipeline {
	return &Pipeline{
		root:      root,
		store:     st,
		extract:   extract,
		embed:     embed,
		syncEng:   syncEng,
		bus:       bus,
		namerDeps: adapterSummarizer{adapter: embed},
		metrics:   m,
	}
}

func (p *Pipeline) emit(typ model.EventType, fileID int64, detail string) {
	ctx := context.Background()
	p.store.AddEvent(ctx, &model.Event{FileID: fileID, Type: typ, Detail: detail, Timestamp: time.Now()})
	p.bus.Publish(model.Broadcast{Type: typ, FileID: fileID, Detail: detail, Timestamp: time.Now()})
}
