package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(axis int, dim int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestCluster_FewerThanThreePointsGetFixedLayout(t *testing.T) {
	t.Parallel()
	r := Cluster([][]float32{unit(0, 4)})
	require.Len(t, r.Labels, 1)
	assert.Equal(t, 0, r.Labels[0])
	assert.Equal(t, [2]float64{0, 0}, r.Coords[0])

	r2 := Cluster([][]float32{unit(0, 4), unit(1, 4)})
	require.Len(t, r2.Labels, 2)
	assert.NotEqual(t, r2.Coords[0], r2.Coords[1])
}

func TestCluster_EmptyInput(t *testing.T) {
	t.Parallel()
	r := Cluster(nil)
	assert.Empty(t, r.Labels)
	assert.Empty(t, r.Coords)
}

func TestAgglomerative_GroupsNearDuplicatesSeparatesUnrelated(t *testing.T) {
	t.Parallel()
	// Two tight groups of near-duplicate vectors, far apart from each other.
	group1 := [][]float32{
		{1, 0.01, 0, 0}, {0.99, 0.02, 0, 0}, {1, 0, 0.01, 0},
	}
	group2 := [][]float32{
		{0, 0, 1, 0.01}, {0, 0.01, 0.99, 0}, {0, 0, 1, 0},
	}
	points := append(append([][]float32{}, group1...), group2...)

	labels := agglomerative(points, agglomerativeDistanceThreshold)
	require.Len(t, labels, 6)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[3], labels[5])
	assert.NotEqual(t, labels[0], labels[3])
}

func TestAgglomerative_SingletonBecomesNoise(t *testing.T) {
	t.Parallel()
	points := [][]float32{
		{1, 0, 0}, {0.99, 0.01, 0}, {1, 0.01, 0},
		{0, 1, 0}, // far from the others and alone
	}
	labels := agglomerative(points, agglomerativeDistanceThreshold)
	assert.Equal(t, NoiseLabel, labels[3])
	assert.Equal(t, labels[0], labels[1])
}

func TestReassignNoise_FoldsCloseNoiseIntoNearestCluster(t *testing.T) {
	t.Parallel()
	embeddings := [][]float32{
		{1, 0, 0}, {0.98, 0.02, 0}, // cluster 0
		{1, 0.05, 0}, // noise, close to cluster 0
		{0, 0, 1},    // noise, far from everything
	}
	labels := []int{0, 0, NoiseLabel, NoiseLabel}
	out := reassignNoise(embeddings, labels)
	assert.Equal(t, 0, out[2])
	assert.Equal(t, NoiseLabel, out[3])
}

func TestCentroid(t *testing.T) {
	t.Parallel()
	c := Centroid([][]float32{{1, 1}, {3, 3}})
	assert.Equal(t, []float32{2, 2}, c)
	assert.Nil(t, Centroid(nil))
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestProject2D_ProducesACoordinatePerPoint(t *testing.T) {
	t.Parallel()
	points := make([][]float32, 10)
	for i := range points {
		points[i] = unit(i%4, 4)
	}
	coords := project2D(points)
	assert.Len(t, coords, 10)
}

func TestPCA2D_DegenerateIdenticalVectorsDoesNotPanic(t *testing.T) {
	t.Parallel()
	points := [][]float32{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	assert.NotPanics(t, func() {
		pca2D(points)
	})
}

func TestCluster_LargeCollectionUsesDensityPath(t *testing.T) {
	t.Parallel()
	var points [][]float32
	for i := 0; i < 15; i++ {
		points = append(points, []float32{1 + float32(i)*0.001, 0.001 * float32(i), 0, 0})
	}
	for i := 0; i < 15; i++ {
		points = append(points, []float32{0, 0, 1 + float32(i)*0.001, 0.001 * float32(i)})
	}
	r := Cluster(points) // 30 points, above smallCollectionThreshold
	require.Len(t, r.Labels, 30)
	require.Len(t, r.Coords, 30)
}
