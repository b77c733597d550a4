package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/sefs-dev/sefs/pkg/cluster"
	"github.com/sefs-dev/sefs/pkg/extractor"
	"github.com/sefs-dev/sefs/pkg/metrics"
	"github.com/sefs-dev/sefs/pkg/model"
)

// searchTimeout bounds the embedding call backing semantic_search
// (spec.md §5: "Embedding calls for the search endpoint have a
// 15-second timeout").
const searchTimeout = 15 * time.Second

// Status is the control-plane "status" op response (spec.md §6),
// carrying the pipeline timing summary (pkg/metrics) alongside the
// counts spec.md names explicitly.
type Status struct {
	Root         string          `json:"root"`
	FileCount    int             `json:"file_count"`
	ClusterCount int             `json:"cluster_count"`
	Metrics      metrics.Summary `json:"metrics"`
}

// SearchResult is one ranked hit from semantic_search or related.
type SearchResult struct {
	FileID   int64   `json:"file_id"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

func (e *Engine) handles() (*pipelineHandles, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pipeline == nil {
		return nil, errors.New("engine: no root mounted")
	}
	return &pipelineHandles{root: e.root, store: e.rootDB}, nil
}

type pipelineHandles struct {
	root  string
	store interface {
		ListAll(ctx context.Context) ([]*model.FileRecord, error)
		ListClusters(ctx context.Context) ([]*model.ClusterRecord, error)
		GetByID(ctx context.Context, id int64) (*model.FileRecord, error)
		RecentEvents(ctx context.Context, limit int) ([]*model.Event, error)
	}
}

// Status implements the "status" control-plane op.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	h, err := e.handles()
	if err != nil {
		return Status{}, err
	}
	files, err := h.store.ListAll(ctx)
	if err != nil {
		return Status{}, err
	}
	clusters, err := h.store.ListClusters(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Root:         h.root,
		FileCount:    len(files),
		ClusterCount: len(clusters),
		Metrics:      e.metrics.Summary(),
	}, nil
}

// ListFiles implements the "list files" control-plane op.
func (e *Engine) ListFiles(ctx context.Context) ([]*model.FileRecord, error) {
	h, err := e.handles()
	if err != nil {
		return nil, err
	}
	return h.store.ListAll(ctx)
}

// ListClusters implements the "list clusters" control-plane op.
func (e *Engine) ListClusters(ctx context.Context) ([]*model.ClusterRecord, error) {
	h, err := e.handles()
	if err != nil {
		return nil, err
	}
	return h.store.ListClusters(ctx)
}

// ListEvents implements the "list events" control-plane op.
func (e *Engine) ListEvents(ctx context.Context, limit int) ([]*model.Event, error) {
	h, err := e.handles()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	return h.store.RecentEvents(ctx, limit)
}

// SemanticSearch implements the "semantic_search" control-plane op:
// embed the query and rank every tracked file by cosine similarity.
func (e *Engine) SemanticSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	h, err := e.handles()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	e.mu.RLock()
	embed := e.embed
	e.mu.RUnlock()
	qvec := embed.GetEmbedding(ctx, query)
	if len(qvec) == 0 {
		return nil, errors.New("engine: query embedding unavailable")
	}

	files, err := h.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return rankBySimilarity(files, qvec, limit), nil
}

// Related implements the "related" control-plane op: rank every other
// tracked file by similarity to fileID's own embedding.
func (e *Engine) Related(ctx context.Context, fileID int64, limit int) ([]SearchResult, error) {
	h, err := e.handles()
	if err != nil {
		return nil, err
	}
	target, err := h.store.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if target == nil || !target.HasEmbedding() {
		return nil, fmt.Errorf("engine: file %d has no embedding", fileID)
	}

	files, err := h.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var others []*model.FileRecord
	for _, f := range files {
		if f.ID != fileID {
			others = append(others, f)
		}
	}
	return rankBySimilarity(others, target.Embedding, limit), nil
}

func rankBySimilarity(files []*model.FileRecord, target []float32, limit int) []SearchResult {
	results := make([]SearchResult, 0, len(files))
	for _, f := range files {
		if !f.HasEmbedding() {
			continue
		}
		results = append(results, SearchResult{
			FileID:   f.ID,
			Filename: f.Filename,
			Score:    cluster.CosineSimilarity(target, f.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Rescan implements the "rescan" control-plane op: walk the managed
// root, ingest every supported file, then run a full recluster before
// returning the count processed.
func (e *Engine) Rescan(ctx context.Context) (int, error) {
	e.mu.RLock()
	root, pl := e.root, e.pipeline
	e.mu.RUnlock()

	e.emit(model.EventScanStart, root)

	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !extractor.IsSupported(path) {
			return nil
		}
		if _, ferr := pl.ProcessFile(ctx, path); ferr == nil {
			count++
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("engine: rescan walk: %w", err)
	}

	if rerr := pl.FullRecluster(ctx); rerr != nil {
		return count, fmt.Errorf("engine: rescan recluster: %w", rerr)
	}
	e.emit(model.EventScanComplete, fmt.Sprintf("%d files", count))
	return count, nil
}

// Subscribe exposes the event bus to a control-plane "subscribe"
// consumer (typically pkg/api's SSE handler).
func (e *Engine) Subscribe() (<-chan model.Broadcast, func()) {
	return e.bus.Subscribe()
}
