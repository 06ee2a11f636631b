package engine

import (
	"math"

	"github.com/scrypster/intentgap/pkg/types"
)

// cosineSimilarity returns the cosine of the angle between two vectors.
// Returns 0 when either vector is zero or the dimensions differ.
func cosineSimilarity(a, b types.Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// euclideanDistance returns the L2 distance between two vectors.
func euclideanDistance(a, b types.Vector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// normalize scales a vector to unit length in place. Zero vectors are left
// unchanged.
func normalize(v types.Vector) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// centroid returns the component-wise mean of the given vectors.
func centroid(vectors []types.Vector) types.Vector {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sums := make([]float64, dim)
	for _, v := range vectors {
		for i := range v {
			sums[i] += float64(v[i])
		}
	}
	out := make(types.Vector, dim)
	n := float64(len(vectors))
	for i := range sums {
		out[i] = float32(sums[i] / n)
	}
	return out
}
