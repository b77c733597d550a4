package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sefs-dev/sefs/pkg/cluster"
	"github.com/sefs-dev/sefs/pkg/model"
	"github.com/sefs-dev/sefs/pkg/namer"
	"github.com/sefs-dev/sefs/pkg/sync"
)

// representativeTextCount bounds how many sample documents feed the
// namer per cluster (spec.md §4.9 step 7).
const representativeTextCount = 5

// coordinateBound is the half-width of the square 2D coordinates are
// rescaled into after clustering (spec.md §4.9 step 6).
const coordinateBound = 400.0

// FullRecluster runs spec.md §4.9's full pipeline: repair orphaned
// rows, migrate stale-dimension embeddings, re-run the clusterer over
// every embedded file, rename and resync the on-disk layout, and
// persist the new partition. Clearing the old clusters, writing the
// new ones and updating each file's assignment are separate store
// calls, not one transaction, so a concurrent reader can observe the
// cleared or a partly written partition.
func (p *Pipeline) FullRecluster(ctx context.Context) error {
	p.emit(model.EventReclusterStart, 0, "")

	if err := p.repair(ctx); err != nil {
		return fmt.Errorf("repair: %w", err)
	}

	files, err := p.loadEmbedded(ctx)
	if err != nil {
		return err
	}

	if len(files) < 2 {
		if len(files) == 1 {
			if err := p.writeSingleFileCluster(ctx, files[0]); err != nil {
				return err
			}
		}
		p.emit(model.EventReclusterEnd, 0, "fewer than 2 embedded files")
		return nil
	}

	clusterStart := time.Now()

	files, err = p.migrateDimensions(ctx, files)
	if err != nil {
		return err
	}
	if len(files) < 2 {
		p.emit(model.EventReclusterEnd, 0, "fewer than 2 usable vectors after dimension migration")
		return nil
	}

	embeddings := make([][]float32, len(files))
	for i, f := range files {
		embeddings[i] = f.Embedding
	}
	result := cluster.Cluster(embeddings)
	coords := rescaleCoords(result.Coords)

	names, err := p.nameClusters(ctx, files, result.Labels)
	if err != nil {
		return err
	}

	if err := p.store.ClearClusters(ctx); err != nil {
		return fmt.Errorf("clear clusters: %w", err)
	}

	clusterIDs, err := p.persistClusters(ctx, files, result.Labels, names)
	if err != nil {
		return err
	}

	for i, f := range files {
		label := result.Labels[i]
		clusterID := int64(model.UncategorisedClusterID)
		if id, ok := clusterIDs[label]; ok {
			clusterID = id
		}
		if err := p.store.UpdateClusterID(ctx, f.ID, clusterID); err != nil {
			return err
		}
		if err := p.store.UpdateCoords(ctx, f.ID, coords[i][0], coords[i][1]); err != nil {
			return err
		}
	}

	moves, err := p.syncReclusteredFiles(ctx, files, result.Labels, names)
	if err != nil {
		return err
	}

	p.metrics.RecordClustering(msSince(clusterStart))
	p.emit(model.EventReclusterEnd, 0, fmt.Sprintf("%d files, %d clusters, %d moves", len(files), len(clusterIDs), len(moves)))
	return nil
}

// repair implements spec.md §4.9 step 1: deduplicate rows whose
// (hash, filename) pair no longer exists on disk, and drop orphan
// rows whose current and original paths are both gone.
func (p *Pipeline) repair(ctx context.Context) error {
	all, err := p.store.ListAll(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]int64) // hash+filename -> surviving id
	for _, f := range all {
		key := f.ContentHash + "\x00" + f.Filename
		currentExists := pathExists(f.CurrentPath)
		originalExists := pathExists(f.OriginalPath)

		if !currentExists && !originalExists {
			if err := p.store.DeleteFile(ctx, f.ID); err != nil {
				return err
			}
			continue
		}
		if !currentExists {
			if survivorID, dup := seen[key]; dup && survivorID != f.ID {
				if err := p.store.DeleteFile(ctx, f.ID); err != nil {
					return err
				}
				continue
			}
		}
		seen[key] = f.ID
	}
	return nil
}

func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func (p *Pipeline) loadEmbedded(ctx context.Context) ([]*model.FileRecord, error) {
	all, err := p.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.FileRecord
	for _, f := range all {
		if f.HasEmbedding() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (p *Pipeline) writeSingleFileCluster(ctx context.Context, f *model.FileRecord) error {
	if err := p.store.ClearClusters(ctx); err != nil {
		return err
	}
	id, err := p.store.UpsertCluster(ctx, &model.ClusterRecord{
		Name: "General", FolderPath: "General", Centroid: f.Embedding, FileCount: 1,
	})
	if err != nil {
		return err
	}
	if err := p.store.UpdateClusterID(ctx, f.ID, id); err != nil {
		return err
	}
	return p.store.UpdateCoords(ctx, f.ID, 0, 0)
}

// migrateDimensions implements spec.md §4.9 step 4: re-embed any
// record whose vector dimension no longer matches the active
// provider, falling back to pad/truncate on failure, and dropping any
// vector that is still zero afterward.
func (p *Pipeline) migrateDimensions(ctx context.Context, files []*model.FileRecord) ([]*model.FileRecord, error) {
	expected := p.embed.ExpectedDim()
	var out []*model.FileRecord
	for _, f := range files {
		if len(f.Embedding) == expected {
			out = append(out, f)
			continue
		}

		res := p.extract.Extract(f.CurrentPath)
		vec := p.embed.GetEmbedding(ctx, res.Text)
		if len(vec) != expected || allZeroVec(vec) {
			vec = padOrTruncate(f.Embedding, expected)
		}
		if allZeroVec(vec) {
			continue // still unusable after pad/truncate: dropped from this recluster.
		}
		if err := p.store.UpdateEmbedding(ctx, f.ID, vec, p.embed.CurrentModelTag()); err != nil {
			return nil, err
		}
		f.Embedding = vec
		out = append(out, f)
	}
	return out, nil
}

func allZeroVec(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func padOrTruncate(v []float32, dim int) []float32 {
	out := make([]float32, dim)
	copy(out, v)
	return out
}

// rescaleCoords linearly maps coords into [-coordinateBound,
// coordinateBound] on both axes (spec.md §4.9 step 6).
func rescaleCoords(coords [][2]float64) [][2]float64 {
	if len(coords) == 0 {
		return coords
	}
	minX, maxX := coords[0][0], coords[0][0]
	minY, maxY := coords[0][1], coords[0][1]
	for _, c := range coords {
		minX, maxX = min(minX, c[0]), max(maxX, c[0])
		minY, maxY = min(minY, c[1]), max(maxY, c[1])
	}

	scale := func(v, lo, hi float64) float64 {
		if hi-lo < 1e-9 {
			return 0
		}
		return (v-lo)/(hi-lo)*(2*coordinateBound) - coordinateBound
	}

	out := make([][2]float64, len(coords))
	for i, c := range coords {
		out[i] = [2]float64{scale(c[0], minX, maxX), scale(c[1], minY, maxY)}
	}
	return out
}

// nameClusters groups files by label and invokes the namer once per
// non-noise cluster, sharing one Namer instance so collisions within
// the run get numbered (spec.md §4.9 step 7).
func (p *Pipeline) nameClusters(ctx context.Context, files []*model.FileRecord, labels []int) (map[int]string, error) {
	byLabel := make(map[int][]*model.FileRecord)
	for i, f := range files {
		byLabel[labels[i]] = append(byLabel[labels[i]], f)
	}

	n := namer.New(p.namerDeps)
	names := make(map[int]string, len(byLabel))
	for label, members := range byLabel {
		if label == cluster.NoiseLabel {
			names[label] = model.UncategorisedClusterName
			continue
		}
		texts := p.representativeTexts(members)
		names[label] = n.Name(ctx, texts)
	}
	return names, nil
}

func (p *Pipeline) representativeTexts(members []*model.FileRecord) []string {
	var texts []string
	for _, f := range members {
		if len(texts) >= representativeTextCount {
			break
		}
		res := p.extract.Extract(f.CurrentPath)
		if res.Text != "" {
			texts = append(texts, res.Text)
			continue
		}
		if f.Summary != "" {
			texts = append(texts, f.Summary+" "+f.Filename)
		} else {
			texts = append(texts, f.Filename)
		}
	}
	return texts
}

func (p *Pipeline) persistClusters(ctx context.Context, files []*model.FileRecord, labels []int, names map[int]string) (map[int]int64, error) {
	byLabel := make(map[int][][]float32)
	counts := make(map[int]int)
	for i, f := range files {
		byLabel[labels[i]] = append(byLabel[labels[i]], f.Embedding)
		counts[labels[i]]++
	}

	ids := make(map[int]int64, len(names))
	for label, name := range names {
		var centroid []float32
		if label != cluster.NoiseLabel {
			centroid = cluster.Centroid(byLabel[label])
		}
		id, err := p.store.UpsertCluster(ctx, &model.ClusterRecord{
			Name: name, FolderPath: name, Centroid: centroid, FileCount: counts[label],
		})
		if err != nil {
			return nil, err
		}
		ids[label] = id
	}
	return ids, nil
}

// syncReclusteredFiles builds a sync plan from the new partition and
// invokes the Sync Engine, then applies the resulting moves back onto
// the store (spec.md §4.9 steps 10–11).
func (p *Pipeline) syncReclusteredFiles(ctx context.Context, files []*model.FileRecord, labels []int, names map[int]string) ([]sync.Move, error) {
	var plan []sync.PlanEntry
	var clusterNames []string
	seenNames := make(map[string]bool)

	for i, f := range files {
		name := names[labels[i]]
		plan = append(plan, sync.PlanEntry{
			FileID:       f.ID,
			CurrentPath:  f.CurrentPath,
			OriginalPath: f.OriginalPath,
			Filename:     f.Filename,
			ClusterName:  name,
		})
		if name != model.UncategorisedClusterName && !seenNames[name] {
			seenNames[name] = true
			clusterNames = append(clusterNames, name)
		}
	}

	moves := p.syncEng.SyncFilesToFolders(ctx, plan, clusterNames)
	for _, m := range moves {
		f := findFile(files, m.FileID)
		if f == nil {
			continue
		}
		if err := p.store.UpdatePaths(ctx, f.ID, m.To, f.OriginalPath, filepath.Base(m.To)); err != nil {
			return nil, err
		}
	}
	return moves, nil
}

func findFile(files []*model.FileRecord, id int64) *model.FileRecord {
	for _, f := range files {
		if f.ID == id {
			return f
		}
	}
	return nil
}
