package engine

import (
	"fmt"
	"sort"

	"github.com/scrypster/intentgap/internal/config"
	"github.com/scrypster/intentgap/pkg/types"
)

// Clusterer partitions message vectors into groups. Assign returns one label
// per vector; types.NoiseClusterID marks unassigned points for strategies
// that support noise.
type Clusterer interface {
	// Assign labels each vector. Labels are contiguous from 0, ordered by
	// the lowest member index, so runs are deterministic.
	Assign(vectors []types.Vector) ([]int, error)
}

// NewClusterer selects the clustering strategy from configuration.
func NewClusterer(cfg config.ClusteringConfig) (Clusterer, error) {
	switch cfg.Strategy {
	case config.StrategyAgglomerative:
		return &AgglomerativeClusterer{TargetK: cfg.TargetK}, nil
	case config.StrategyDensity:
		return &DensityClusterer{
			Epsilon:        cfg.Epsilon,
			MinSamples:     cfg.MinSamples,
			MinClusterSize: cfg.MinClusterSize,
		}, nil
	default:
		return nil, fmt.Errorf("unknown clustering strategy: %q", cfg.Strategy)
	}
}

// AgglomerativeClusterer merges clusters bottom-up with Ward linkage until
// TargetK clusters remain. Ward linkage minimizes the within-cluster
// variance increase at each merge, which favors compact, similarly sized
// clusters over chains.
type AgglomerativeClusterer struct {
	TargetK int
}

var _ Clusterer = (*AgglomerativeClusterer)(nil)

// degenerateSpread is the squared pairwise distance below which all points
// count as the same point.
const degenerateSpread = 1e-6

func (c *AgglomerativeClusterer) Assign(vectors []types.Vector) ([]int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	k := c.TargetK
	if k <= 0 {
		return nil, fmt.Errorf("target cluster count must be positive, got %d", k)
	}
	if n <= k {
		// Too few points to carve k groups; one cluster holds everything.
		return make([]int, n), nil
	}

	// members[i] holds the vector indices of active cluster i; merged
	// clusters are set to nil.
	members := make([][]int, n)
	sizes := make([]int, n)
	for i := range vectors {
		members[i] = []int{i}
		sizes[i] = 1
	}

	// Squared euclidean distances, updated with the Lance-Williams
	// recurrence after each merge.
	dist := make([][]float64, n)
	spread := 0.0
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := i + 1; j < n; j++ {
			d := euclideanDistance(vectors[i], vectors[j])
			dist[i][j] = d * d
			if dist[i][j] > spread {
				spread = dist[i][j]
			}
		}
	}

	// Identical or near-identical inputs have no structure to carve into k
	// groups. The degraded result is a single cluster, never an arbitrary
	// k-way partition of the same point.
	if spread < degenerateSpread {
		return make([]int, n), nil
	}

	active := n
	for active > k {
		// Find the cheapest merge. Ties break on the lowest (i, j) pair
		// so identical inputs always produce identical dendrograms.
		bi, bj := -1, -1
		best := 0.0
		for i := 0; i < n; i++ {
			if members[i] == nil {
				continue
			}
			for j := i + 1; j < n; j++ {
				if members[j] == nil {
					continue
				}
				if bi == -1 || dist[i][j] < best {
					best = dist[i][j]
					bi, bj = i, j
				}
			}
		}

		// Merge bj into bi, then update distances from bi to every other
		// active cluster using the Ward recurrence.
		ni, nj := float64(sizes[bi]), float64(sizes[bj])
		for m := 0; m < n; m++ {
			if m == bi || m == bj || members[m] == nil {
				continue
			}
			nm := float64(sizes[m])
			dim := pairDist(dist, bi, m)
			djm := pairDist(dist, bj, m)
			merged := ((ni+nm)*dim + (nj+nm)*djm - nm*best) / (ni + nj + nm)
			setPairDist(dist, bi, m, merged)
		}

		members[bi] = append(members[bi], members[bj]...)
		sizes[bi] += sizes[bj]
		members[bj] = nil
		active--
	}

	return labelsFromGroups(n, members), nil
}

func pairDist(dist [][]float64, i, j int) float64 {
	if i < j {
		return dist[i][j]
	}
	return dist[j][i]
}

func setPairDist(dist [][]float64, i, j int, v float64) {
	if i < j {
		dist[i][j] = v
	} else {
		dist[j][i] = v
	}
}

// DensityClusterer groups vectors by neighborhood density. Points with at
// least MinSamples neighbors within Epsilon (cosine distance) seed clusters;
// reachable points join them; everything else is noise. Clusters smaller
// than MinClusterSize are demoted to noise.
type DensityClusterer struct {
	Epsilon        float64
	MinSamples     int
	MinClusterSize int
}

var _ Clusterer = (*DensityClusterer)(nil)

func (c *DensityClusterer) Assign(vectors []types.Vector) ([]int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	if c.Epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %f", c.Epsilon)
	}

	const unvisited = -2
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(p int) []int {
		var out []int
		for q := 0; q < n; q++ {
			if q == p {
				continue
			}
			if 1-cosineSimilarity(vectors[p], vectors[q]) <= c.Epsilon {
				out = append(out, q)
			}
		}
		return out
	}

	next := 0
	for p := 0; p < n; p++ {
		if labels[p] != unvisited {
			continue
		}
		nbrs := neighbors(p)
		if len(nbrs) < c.MinSamples {
			labels[p] = types.NoiseClusterID
			continue
		}

		labels[p] = next
		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if labels[q] == types.NoiseClusterID {
				labels[q] = next // border point, reachable from a core
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = next
			qn := neighbors(q)
			if len(qn) >= c.MinSamples {
				queue = append(queue, qn...)
			}
		}
		next++
	}

	// Demote undersized clusters to noise, then relabel so IDs stay
	// contiguous and ordered by lowest member index.
	counts := make(map[int]int)
	for _, l := range labels {
		if l >= 0 {
			counts[l]++
		}
	}
	groups := make([][]int, next)
	for i, l := range labels {
		if l >= 0 && counts[l] >= c.MinClusterSize {
			groups[l] = append(groups[l], i)
		} else if l >= 0 {
			labels[i] = types.NoiseClusterID
		}
	}
	return relabelWithNoise(labels, groups), nil
}

// labelsFromGroups converts member groups into per-point labels with IDs
// assigned in order of each group's lowest member index.
func labelsFromGroups(n int, groups [][]int) []int {
	var live [][]int
	for _, g := range groups {
		if g != nil {
			sort.Ints(g)
			live = append(live, g)
		}
	}
	sort.Slice(live, func(a, b int) bool { return live[a][0] < live[b][0] })

	labels := make([]int, n)
	for id, g := range live {
		for _, idx := range g {
			labels[idx] = id
		}
	}
	return labels
}

func relabelWithNoise(labels []int, groups [][]int) []int {
	var live [][]int
	for _, g := range groups {
		if len(g) > 0 {
			live = append(live, g)
		}
	}
	sort.Slice(live, func(a, b int) bool { return live[a][0] < live[b][0] })

	out := make([]int, len(labels))
	for i := range out {
		out[i] = types.NoiseClusterID
	}
	for id, g := range live {
		for _, idx := range g {
			out[idx] = id
		}
	}
	return out
}

// BuildClusters assembles cluster records from labels: membership, centroid,
// size, and the representative samples closest to the centroid by cosine
// similarity. Noise points are excluded.
func BuildClusters(messages []types.Message, vectors []types.Vector, labels []int, representatives int) []*types.Cluster {
	byLabel := make(map[int][]int)
	maxLabel := -1
	for i, l := range labels {
		if l == types.NoiseClusterID {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
		if l > maxLabel {
			maxLabel = l
		}
	}

	clusters := make([]*types.Cluster, 0, len(byLabel))
	for id := 0; id <= maxLabel; id++ {
		idxs, ok := byLabel[id]
		if !ok {
			continue
		}

		vecs := make([]types.Vector, len(idxs))
		ids := make([]string, len(idxs))
		for i, idx := range idxs {
			vecs[i] = vectors[idx]
			ids[i] = messages[idx].ID
		}
		center := centroid(vecs)

		// Rank members by similarity to the centroid; ties keep input order.
		ranked := append([]int(nil), idxs...)
		sort.SliceStable(ranked, func(a, b int) bool {
			return cosineSimilarity(vectors[ranked[a]], center) > cosineSimilarity(vectors[ranked[b]], center)
		})
		limit := representatives
		if limit > len(ranked) || limit <= 0 {
			limit = len(ranked)
		}
		reps := make([]string, limit)
		for i := 0; i < limit; i++ {
			reps[i] = messages[ranked[i]].Text
		}

		clusters = append(clusters, &types.Cluster{
			ID:              id,
			MessageIDs:      ids,
			Centroid:        center,
			Representatives: reps,
			Size:            len(idxs),
		})
	}
	return clusters
}
