package cluster

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// stressMajorizationIterations bounds the gradient-descent layout
// pass (spec.md §4.4 step 5's neighborhood-preserving reducer).
const stressMajorizationIterations = 300

// project2D lays out embeddings in two dimensions for the map view,
// preserving cosine-distance neighborhoods as closely as a 2D layout
// allows. It never influences cluster labels — only called after
// assignment is final.
func project2D(embeddings [][]float32) [][2]float64 {
	coords, ok := stressMajorization(embeddings)
	if ok {
		return coords
	}
	return pca2D(embeddings)
}

// stressMajorization runs a classic SMACOF-style layout: start from a
// PCA embedding, then iteratively move each point toward the position
// that best matches its target distances to every other point.
// Returns ok=false on a degenerate input (e.g. every point identical,
// which makes the target distance matrix all zero and the PCA seed
// singular).
func stressMajorization(embeddings [][]float32) ([][2]float64, bool) {
	n := len(embeddings)
	target := pairwiseCosineDistance(embeddings)
	if allZero(target) {
		return nil, false
	}

	coords := pca2D(embeddings)
	if coords == nil {
		return nil, false
	}

	for iter := 0; iter < stressMajorizationIterations; iter++ {
		next := make([][2]float64, n)
		for i := 0; i < n; i++ {
			var sumX, sumY, sumW float64
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				dx := coords[i][0] - coords[j][0]
				dy := coords[i][1] - coords[j][1]
				d := math.Sqrt(dx*dx + dy*dy)
				if d < 1e-9 {
					d = 1e-9
				}
				w := 1.0
				want := target[i][j]*100 + 1 // scale cosine distances [0,2] into a visible layout range
				ratio := want / d
				sumX += w * (coords[j][0] + dx*ratio)
				sumY += w * (coords[j][1] + dy*ratio)
				sumW += w
			}
			if sumW == 0 {
				next[i] = coords[i]
				continue
			}
			next[i] = [2]float64{sumX / sumW, sumY / sumW}
		}
		coords = next
	}
	return coords, true
}

func allZero(m [][]float64) bool {
	for _, row := range m {
		for _, v := range row {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// pca2D projects embeddings onto their top two principal components
// via SVD, the fallback spec.md §4.4 step 5 requires on reducer
// failure. Grounded on the pack's build-pca tool, which centers the
// matrix and factorizes it the same way.
func pca2D(embeddings [][]float32) [][2]float64 {
	n := len(embeddings)
	if n == 0 {
		return nil
	}
	d := len(embeddings[0])
	if d == 0 {
		return nil
	}

	mean := make([]float64, d)
	for _, v := range embeddings {
		for i, x := range v {
			mean[i] += float64(x)
		}
	}
	for i := range mean {
		mean[i] /= float64(n)
	}

	centered := mat.NewDense(n, d, nil)
	for r, v := range embeddings {
		for c := 0; c < d; c++ {
			centered.Set(r, c, float64(v[c])-mean[c])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDThin) {
		return nil
	}
	var u mat.Dense
	svd.UTo(&u)
	values := svd.Values(nil)

	coords := make([][2]float64, n)
	for r := 0; r < n; r++ {
		x, y := 0.0, 0.0
		if len(values) > 0 {
			x = u.At(r, 0) * values[0]
		}
		if len(values) > 1 {
			y = u.At(r, 1) * values[1]
		}
		coords[r] = [2]float64{x, y}
	}
	return coords
}
