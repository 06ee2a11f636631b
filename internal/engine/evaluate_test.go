package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/intentgap/pkg/types"
)

func evalFixture(t *testing.T, vectors []types.Vector, labels []int) ([]*types.Cluster, types.EvaluationMetrics) {
	t.Helper()
	messages := make([]types.Message, len(vectors))
	for i := range messages {
		messages[i] = types.Message{ID: fmt.Sprintf("m%d", i), Text: fmt.Sprintf("text %d", i)}
	}
	clusters := BuildClusters(messages, vectors, labels, 3)
	metrics := Evaluator{}.Evaluate(clusters, vectors, labels)
	return clusters, metrics
}

func TestEvaluate_WellSeparatedClusters(t *testing.T) {
	vectors := []types.Vector{
		axisVec(0, 4), nudge(0, 1, 0.05), nudge(0, 1, 0.1),
		axisVec(2, 4), nudge(2, 3, 0.05), nudge(2, 3, 0.1),
	}
	labels := []int{0, 0, 0, 1, 1, 1}

	clusters, metrics := evalFixture(t, vectors, labels)

	// Tight clusters on orthogonal axes: silhouette close to 1.
	assert.Greater(t, metrics.Cohesion, 0.9)
	assert.Greater(t, metrics.Separation, 0.5)
	assert.Equal(t, 1.0, metrics.Coverage)

	for _, c := range clusters {
		assert.Greater(t, c.Cohesion, 0.9)
		assert.Greater(t, c.Separation, 0.8, "orthogonal centroids are nearly distance 1 apart")
	}
}

func TestEvaluate_OverlappingClustersScoreLow(t *testing.T) {
	// Two "clusters" drawn from the same direction.
	vectors := []types.Vector{
		axisVec(0, 4), nudge(0, 1, 0.05), nudge(0, 1, 0.1),
		nudge(0, 1, 0.06), nudge(0, 1, 0.11), nudge(0, 1, 0.02),
	}
	labels := []int{0, 0, 0, 1, 1, 1}

	_, metrics := evalFixture(t, vectors, labels)
	assert.Less(t, metrics.Cohesion, 0.5, "interleaved clusters must not look cohesive")
}

func TestEvaluate_CoverageCountsNoise(t *testing.T) {
	vectors := []types.Vector{
		axisVec(0, 4), nudge(0, 1, 0.05),
		axisVec(2, 4), nudge(2, 3, 0.05),
		axisVec(1, 4), axisVec(3, 4),
	}
	labels := []int{0, 0, 1, 1, types.NoiseClusterID, types.NoiseClusterID}

	_, metrics := evalFixture(t, vectors, labels)
	assert.InDelta(t, 4.0/6.0, metrics.Coverage, 1e-9)
}

func TestEvaluate_SingleCluster(t *testing.T) {
	vectors := []types.Vector{
		axisVec(0, 4), nudge(0, 1, 0.05), nudge(0, 1, 0.1),
	}
	labels := []int{0, 0, 0}

	clusters, metrics := evalFixture(t, vectors, labels)

	// Silhouette is undefined with one cluster; cohesion falls back to
	// similarity against the centroid, which is high for a tight group.
	assert.Greater(t, metrics.Cohesion, 0.9)
	assert.Equal(t, 1.0, metrics.Separation, "Davies-Bouldin is zero with a single cluster")
	assert.Equal(t, 1.0, clusters[0].Separation)
}

func TestEvaluate_EmptyClustering(t *testing.T) {
	metrics := Evaluator{}.Evaluate(nil, nil, nil)
	assert.Zero(t, metrics.Cohesion)
	assert.Zero(t, metrics.Coverage)
}

// Cohesion uses cosine distance, so rescaling every vector by a positive
// constant must not change any score.
func TestEvaluate_ScaleInvariance(t *testing.T) {
	base := []types.Vector{
		axisVec(0, 4), nudge(0, 1, 0.1), nudge(0, 2, 0.15),
		axisVec(2, 4), nudge(2, 3, 0.1), nudge(2, 0, 0.15),
	}
	labels := []int{0, 0, 0, 1, 1, 1}

	scaled := make([]types.Vector, len(base))
	for i, v := range base {
		s := make(types.Vector, len(v))
		for j, x := range v {
			s[j] = x * 7.5
		}
		scaled[i] = s
	}

	_, m1 := evalFixture(t, base, labels)
	_, m2 := evalFixture(t, scaled, labels)

	assert.InDelta(t, m1.Cohesion, m2.Cohesion, 1e-6)
	assert.InDelta(t, m1.Separation, m2.Separation, 1e-6)
}

func TestDiagnostics(t *testing.T) {
	vectors := []types.Vector{
		axisVec(0, 4), nudge(0, 1, 0.05),
		axisVec(2, 4), nudge(2, 3, 0.05),
	}
	labels := []int{0, 0, 1, 1}

	clusters, _ := evalFixture(t, vectors, labels)
	diags := Evaluator{}.Diagnostics(clusters, 4)

	require.Len(t, diags, 2)
	assert.Equal(t, 0, diags[0].ClusterID)
	assert.Equal(t, 2, diags[0].Size)
	assert.InDelta(t, 50.0, diags[0].Percentage, 1e-9)
	assert.Len(t, diags[0].Representatives, 2)
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		cohesion    float64
		minSize     int
		minCohesion float64
		want        bool
	}{
		{"passes both", 10, 0.5, 5, 0.3, true},
		{"too small", 3, 0.9, 5, 0.3, false},
		{"too loose", 10, 0.1, 5, 0.3, false},
		{"exactly at thresholds", 5, 0.3, 5, 0.3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &types.Cluster{Size: tt.size, Cohesion: tt.cohesion}
			assert.Equal(t, tt.want, Eligible(c, tt.minSize, tt.minCohesion))
		})
	}
}
