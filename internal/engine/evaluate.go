package engine

import (
	"math"

	"github.com/scrypster/intentgap/pkg/types"
)

// Evaluator scores a clustering without any external calls. All metrics use
// cosine distance (1 - cosine similarity), which is well behaved on the
// unit-length vectors the embedder produces.
type Evaluator struct{}

// Evaluate computes per-cluster cohesion and separation plus the overall
// metrics, writing cohesion and separation back onto the cluster records.
func (Evaluator) Evaluate(clusters []*types.Cluster, vectors []types.Vector, labels []int) types.EvaluationMetrics {
	total := len(labels)
	assigned := 0
	for _, l := range labels {
		if l != types.NoiseClusterID {
			assigned++
		}
	}

	metrics := types.EvaluationMetrics{}
	if total > 0 {
		metrics.Coverage = float64(assigned) / float64(total)
	}
	if len(clusters) == 0 {
		return metrics
	}

	perPoint := silhouetteScores(vectors, labels, clusters)

	var overall float64
	for _, c := range clusters {
		var sum float64
		count := 0
		for i, l := range labels {
			if l == c.ID {
				sum += perPoint[i]
				count++
			}
		}
		if count > 0 {
			c.Cohesion = sum / float64(count)
		}
		c.Separation = nearestCentroidDistance(c, clusters)
		overall += sum
	}
	if assigned > 0 {
		metrics.Cohesion = overall / float64(assigned)
	}

	metrics.Separation = 1 / (1 + daviesBouldin(clusters, vectors, labels))
	return metrics
}

// silhouetteScores returns the silhouette coefficient per point. Noise
// points score zero. With a single cluster the silhouette is undefined, so
// each point scores its cosine similarity to the centroid instead.
func silhouetteScores(vectors []types.Vector, labels []int, clusters []*types.Cluster) []float64 {
	scores := make([]float64, len(labels))

	if len(clusters) == 1 {
		c := clusters[0]
		for i, l := range labels {
			if l == c.ID {
				scores[i] = cosineSimilarity(vectors[i], c.Centroid)
			}
		}
		return scores
	}

	byLabel := make(map[int][]int)
	for i, l := range labels {
		if l != types.NoiseClusterID {
			byLabel[l] = append(byLabel[l], i)
		}
	}

	for i, l := range labels {
		if l == types.NoiseClusterID {
			continue
		}
		own := byLabel[l]
		if len(own) == 1 {
			continue // singleton, silhouette defined as 0
		}

		var a float64
		for _, j := range own {
			if j != i {
				a += 1 - cosineSimilarity(vectors[i], vectors[j])
			}
		}
		a /= float64(len(own) - 1)

		b := math.Inf(1)
		for other, idxs := range byLabel {
			if other == l {
				continue
			}
			var sum float64
			for _, j := range idxs {
				sum += 1 - cosineSimilarity(vectors[i], vectors[j])
			}
			if mean := sum / float64(len(idxs)); mean < b {
				b = mean
			}
		}

		if m := math.Max(a, b); m > 0 {
			scores[i] = (b - a) / m
		}
	}
	return scores
}

// daviesBouldin computes the Davies-Bouldin index: the mean over clusters of
// the worst (scatter_i + scatter_j) / centroidDistance ratio. Lower is
// better; zero when only one cluster exists.
func daviesBouldin(clusters []*types.Cluster, vectors []types.Vector, labels []int) float64 {
	if len(clusters) < 2 {
		return 0
	}

	scatter := make(map[int]float64, len(clusters))
	for _, c := range clusters {
		var sum float64
		count := 0
		for i, l := range labels {
			if l == c.ID {
				sum += 1 - cosineSimilarity(vectors[i], c.Centroid)
				count++
			}
		}
		if count > 0 {
			scatter[c.ID] = sum / float64(count)
		}
	}

	var db float64
	for _, ci := range clusters {
		worst := 0.0
		for _, cj := range clusters {
			if ci.ID == cj.ID {
				continue
			}
			sep := 1 - cosineSimilarity(ci.Centroid, cj.Centroid)
			if sep <= 0 {
				continue
			}
			if r := (scatter[ci.ID] + scatter[cj.ID]) / sep; r > worst {
				worst = r
			}
		}
		db += worst
	}
	return db / float64(len(clusters))
}

// nearestCentroidDistance returns the cosine distance to the closest other
// cluster centroid, or 1 when no other cluster exists.
func nearestCentroidDistance(c *types.Cluster, clusters []*types.Cluster) float64 {
	best := math.Inf(1)
	for _, other := range clusters {
		if other.ID == c.ID {
			continue
		}
		if d := 1 - cosineSimilarity(c.Centroid, other.Centroid); d < best {
			best = d
		}
	}
	if math.IsInf(best, 1) {
		return 1
	}
	return best
}

// Diagnostics builds the per-cluster report rows.
func (Evaluator) Diagnostics(clusters []*types.Cluster, totalMessages int) []types.ClusterDiagnostics {
	out := make([]types.ClusterDiagnostics, 0, len(clusters))
	for _, c := range clusters {
		pct := 0.0
		if totalMessages > 0 {
			pct = float64(c.Size) / float64(totalMessages) * 100
		}
		out = append(out, types.ClusterDiagnostics{
			ClusterID:       c.ID,
			Size:            c.Size,
			Percentage:      pct,
			Cohesion:        c.Cohesion,
			Separation:      c.Separation,
			Representatives: c.Representatives,
		})
	}
	return out
}

// Eligible reports whether a cluster is worth sending to the oracle: big
// enough to matter and cohesive enough to describe one topic.
func Eligible(c *types.Cluster, minSize int, minCohesion float64) bool {
	return c.Size >= minSize && c.Cohesion >= minCohesion
}
