package cluster

// agglomerative performs average-linkage hierarchical clustering on
// the cosine-distance matrix of embeddings, merging while the closest
// pair of clusters is within threshold. Clusters left as singletons
// are demoted to noise and the surviving labels are renumbered to a
// contiguous range starting at 0 (spec.md §4.4 step 2).
func agglomerative(embeddings [][]float32, threshold float64) []int {
	n := len(embeddings)
	dist := pairwiseCosineDistance(embeddings)

	// members[i] holds the point indices currently grouped under
	// cluster slot i; a nil entry marks a slot merged away.
	members := make([][]int, n)
	for i := range members {
		members[i] = []int{i}
	}
	active := n

	for active > 1 {
		bi, bj, bd := -1, -1, threshold+1
		for i := 0; i < n; i++ {
			if members[i] == nil {
				continue
			}
			for j := i + 1; j < n; j++ {
				if members[j] == nil {
					continue
				}
				d := averageLinkage(members[i], members[j], dist)
				if d < bd {
					bi, bj, bd = i, j, d
				}
			}
		}
		if bi == -1 || bd > threshold {
			break
		}
		members[bi] = append(members[bi], members[bj]...)
		members[bj] = nil
		active--
	}

	labels := make([]int, n)
	nextLabel := 0
	for i := 0; i < n; i++ {
		if members[i] == nil {
			continue
		}
		if len(members[i]) == 1 {
			labels[members[i][0]] = NoiseLabel
			continue
		}
		for _, idx := range members[i] {
			labels[idx] = nextLabel
		}
		nextLabel++
	}
	return labels
}

func averageLinkage(a, b []int, dist [][]float64) float64 {
	var sum float64
	for _, i := range a {
		for _, j := range b {
			sum += dist[i][j]
		}
	}
	return sum / float64(len(a)*len(b))
}

func pairwiseCosineDistance(embeddings [][]float32) [][]float64 {
	n := len(embeddings)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := cosineDistance(embeddings[i], embeddings[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}
