package cluster

import (
	"math"
	"sort"
)

// minClusterSize is the smallest group of points the density-based
// pass will call a cluster rather than noise.
const minClusterSize = 5

// coreNeighbors is k in each point's core distance (the distance to
// its k-th nearest neighbor), following the mutual-reachability
// construction HDBSCAN-family algorithms use.
const coreNeighbors = 5

// densityCluster runs excess-of-mass selection over a
// mutual-reachability minimum spanning tree, per spec.md §4.4 step 3.
// Embeddings are treated as already L2-normalized so Euclidean
// distance ranks identically to cosine distance.
func densityCluster(embeddings [][]float32) []int {
	n := len(embeddings)
	euclid := pairwiseEuclidean(embeddings)
	core := coreDistances(euclid, coreNeighbors)

	mrd := make([][]float64, n)
	for i := range mrd {
		mrd[i] = make([]float64, n)
		for j := range mrd[i] {
			if i == j {
				continue
			}
			mrd[i][j] = math.Max(euclid[i][j], math.Max(core[i], core[j]))
		}
	}

	edges := minimumSpanningTree(mrd)
	tree := buildHierarchy(n, edges)
	selected := excessOfMass(tree, n)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseLabel
	}
	label := 0
	for _, c := range selected {
		if len(c.points) < minClusterSize {
			continue
		}
		for _, p := range c.points {
			labels[p] = label
		}
		label++
	}
	return labels
}

type mstEdge struct {
	a, b   int
	weight float64
}

// minimumSpanningTree builds a Prim's-algorithm MST over the
// mutual-reachability distance matrix, returned as edges sorted by
// ascending weight (the order Kruskal-style hierarchy construction
// needs).
func minimumSpanningTree(mrd [][]float64) []mstEdge {
	n := len(mrd)
	inTree := make([]bool, n)
	minDist := make([]float64, n)
	minFrom := make([]int, n)
	for i := range minDist {
		minDist[i] = math.Inf(1)
		minFrom[i] = -1
	}
	inTree[0] = true
	for j := 1; j < n; j++ {
		minDist[j] = mrd[0][j]
		minFrom[j] = 0
	}

	var edges []mstEdge
	for range n - 1 {
		next, best := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && minDist[j] < best {
				next, best = j, minDist[j]
			}
		}
		if next == -1 {
			break
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: minFrom[next], b: next, weight: best})
		for j := 0; j < n; j++ {
			if !inTree[j] && mrd[next][j] < minDist[j] {
				minDist[j] = mrd[next][j]
				minFrom[j] = next
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })
	return edges
}

// hierarchyNode is one cluster in the single-linkage dendrogram built
// by adding MST edges in ascending order of weight.
type hierarchyNode struct {
	points    []int
	birthDist float64 // edge weight at which this cluster formed
	children  []*hierarchyNode
	stability float64
}

// buildHierarchy replays the MST edges as a union-find merge sequence
// and records, for every union, the resulting component and the
// distance at which it formed.
func buildHierarchy(n int, edges []mstEdge) *hierarchyNode {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	node := make([]*hierarchyNode, n)
	for i := range node {
		node[i] = &hierarchyNode{points: []int{i}}
	}

	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	var root *hierarchyNode
	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		if ra == rb {
			continue
		}
		merged := &hierarchyNode{
			points:    append(append([]int{}, node[ra].points...), node[rb].points...),
			birthDist: e.weight,
			children:  []*hierarchyNode{node[ra], node[rb]},
		}
		parent[ra] = rb
		node[rb] = merged
		root = merged
	}
	if root == nil && n > 0 {
		root = &hierarchyNode{points: node[find(0)].points}
	}
	computeStability(root)
	return root
}

// computeStability assigns each node a stability score: the sum over
// its member points of (1/death - 1/birth), where death is the
// distance at which the point's immediate child cluster formed (or
// the node's own birth distance for points that joined directly).
func computeStability(n *hierarchyNode) {
	if n == nil {
		return
	}
	for _, c := range n.children {
		computeStability(c)
	}
	if n.birthDist <= 0 {
		return
	}
	birthLambda := 1 / n.birthDist
	for _, c := range n.children {
		childLambda := birthLambda
		if c.birthDist > 0 {
			childLambda = 1 / c.birthDist
		}
		n.stability += float64(len(c.points)) * (childLambda - birthLambda)
	}
}

// excessOfMass selects the set of nodes maximizing total stability:
// a node is selected over its children whenever its own stability
// is at least the sum of its children's, matching HDBSCAN's classic
// cluster-extraction rule.
func excessOfMass(root *hierarchyNode, n int) []*hierarchyNode {
	if root == nil {
		return nil
	}
	var selected []*hierarchyNode
	var walk func(*hierarchyNode) float64
	walk = func(node *hierarchyNode) float64 {
		var childSum float64
		before := len(selected)
		for _, c := range node.children {
			childSum += walk(c)
		}
		if node.stability >= childSum || len(node.children) == 0 {
			selected = selected[:before]
			selected = append(selected, node)
			return node.stability
		}
		return childSum
	}
	walk(root)
	return selected
}

func coreDistances(dist [][]float64, k int) []float64 {
	n := len(dist)
	core := make([]float64, n)
	for i := 0; i < n; i++ {
		row := append([]float64{}, dist[i]...)
		sort.Float64s(row)
		idx := k
		if idx >= len(row) {
			idx = len(row) - 1
		}
		core[i] = row[idx]
	}
	return core
}

func pairwiseEuclidean(embeddings [][]float32) [][]float64 {
	n := len(embeddings)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var sum float64
			for k := 0; k < len(embeddings[i]) && k < len(embeddings[j]); k++ {
				d := float64(embeddings[i][k]) - float64(embeddings[j][k])
				sum += d * d
			}
			d := math.Sqrt(sum)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}
