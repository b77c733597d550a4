package pipeline

import (
	"context"
	"crypto/sha256"
	"math"
	"math/rand"

	"github.com/sefs-dev/sefs/pkg/cluster"
	"github.com/sefs-dev/sefs/pkg/model"
	"github.com/sefs-dev/sefs/pkg/sync"
)

// noiseAssignThreshold mirrors the clusterer's own threshold: below
// this cosine similarity to every live centroid, a file is not placed
// incrementally and a full recluster is needed instead (spec.md
// §4.10 step 3).
const noiseAssignThreshold = 0.40

// jitterRadius bounds how far a newly incrementally-assigned file's
// 2D position is nudged away from its cluster's mean, so it doesn't
// land exactly on top of another point (spec.md §4.10 step 4).
const jitterRadius = 15.0

// TryIncrementalAssign attempts to place fileID into an existing
// cluster without a full recluster. It returns false when no cluster
// exists yet, or when the best live-centroid similarity falls below
// noiseAssignThreshold — the caller should then request a full
// recluster.
func (p *Pipeline) TryIncrementalAssign(ctx context.Context, fileID int64) (bool, error) {
	clusters, err := p.store.ListClusters(ctx)
	if err != nil {
		return false, err
	}
	if len(clusters) == 0 {
		return false, nil
	}

	file, err := p.store.GetByID(ctx, fileID)
	if err != nil {
		return false, err
	}
	if file == nil || !file.HasEmbedding() {
		return false, nil
	}

	bestID, _, bestSim, members, err := p.bestLiveCluster(ctx, clusters, file.Embedding)
	if err != nil {
		return false, err
	}
	if bestSim < noiseAssignThreshold {
		return false, nil
	}

	x, y := jitteredPosition(members, file.ContentHash)
	if err := p.store.UpdateClusterID(ctx, fileID, bestID); err != nil {
		return false, err
	}
	if err := p.store.UpdateCoords(ctx, fileID, x, y); err != nil {
		return false, err
	}

	newCentroid := cluster.Centroid(append(append([][]float32{}, membersEmbeddings(members)...), file.Embedding))
	c, err := p.store.GetCluster(ctx, bestID)
	if err == nil && c != nil {
		c.Centroid = newCentroid
		c.FileCount++
		if _, err := p.store.UpsertCluster(ctx, c); err != nil {
			return false, err
		}
	}

	if err := p.relocateIntoCluster(ctx, file, c); err != nil {
		return false, err
	}
	return true, nil
}

// bestLiveCluster recomputes each cluster's centroid from its current
// members (spec.md §4.10 step 2: "the stored centroid may be stale")
// and returns the best match by cosine similarity.
func (p *Pipeline) bestLiveCluster(ctx context.Context, clusters []*model.ClusterRecord, target []float32) (int64, []float32, float64, []*model.FileRecord, error) {
	var bestID int64 = model.UncategorisedClusterID
	var bestCentroid []float32
	var bestMembers []*model.FileRecord
	bestSim := -1.0

	for _, c := range clusters {
		members, err := p.store.ListByCluster(ctx, c.ID)
		if err != nil {
			return 0, nil, 0, nil, err
		}
		centroid := c.Centroid
		if len(members) > 0 {
			centroid = cluster.Centroid(membersEmbeddings(members))
		}
		if len(centroid) == 0 {
			continue
		}
		sim := cluster.CosineSimilarity(target, centroid)
		if sim > bestSim {
			bestID, bestCentroid, bestSim, bestMembers = c.ID, centroid, sim, members
		}
	}
	return bestID, bestCentroid, bestSim, bestMembers, nil
}

func membersEmbeddings(members []*model.FileRecord) [][]float32 {
	out := make([][]float32, 0, len(members))
	for _, m := range members {
		if m.HasEmbedding() {
			out = append(out, m.Embedding)
		}
	}
	return out
}

// jitteredPosition returns the mean 2D position of members plus a
// small deterministic offset seeded from the new file's content hash,
// so repeated runs over the same corpus place the same file in the
// same spot.
func jitteredPosition(members []*model.FileRecord, contentHash string) (float64, float64) {
	var sumX, sumY float64
	for _, m := range members {
		sumX += m.X
		sumY += m.Y
	}
	n := float64(len(members))
	meanX, meanY := 0.0, 0.0
	if n > 0 {
		meanX, meanY = sumX/n, sumY/n
	}

	seed := int64(0)
	if len(contentHash) >= 8 {
		sum := sha256.Sum256([]byte(contentHash))
		for _, b := range sum[:8] {
			seed = seed<<8 | int64(b)
		}
	}
	r := rand.New(rand.NewSource(seed))
	angle := r.Float64() * 2 * math.Pi
	radius := r.Float64() * jitterRadius
	return meanX + radius*math.Cos(angle), meanY + radius*math.Sin(angle)
}

func (p *Pipeline) relocateIntoCluster(ctx context.Context, file *model.FileRecord, c *model.ClusterRecord) error {
	if c == nil {
		return nil
	}
	moves := p.syncEng.SyncFilesToFolders(ctx, []sync.PlanEntry{{
		FileID:       file.ID,
		CurrentPath:  file.CurrentPath,
		OriginalPath: file.OriginalPath,
		Filename:     file.Filename,
		ClusterName:  c.Name,
	}}, []string{c.Name})
	for _, m := range moves {
		if m.FileID == file.ID {
			if err := p.store.UpdatePaths(ctx, file.ID, m.To, file.OriginalPath, file.Filename); err != nil {
				return err
			}
		}
	}
	return nil
}
