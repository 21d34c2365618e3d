// Package facematch provides face comparison utilities shared between the kiosk loop, CLI and web handlers.
package facematch

import (
	"fmt"
	"math"
)

// Metric identifies the embedding distance function.
type Metric string

const (
	// MetricEuclidean is the L2 distance used by dlib-style 128-d descriptors.
	MetricEuclidean Metric = "euclidean"
	// MetricCosine is 1 - cosine similarity, used by normalized ArcFace-style embeddings.
	MetricCosine Metric = "cosine"
)

// ParseMetric converts a config string to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricEuclidean, MetricCosine:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// Distance computes the distance between two embeddings with the metric.
func (m Metric) Distance(a, b []float32) float64 {
	if m == MetricCosine {
		return CosineDistance(a, b)
	}
	return EuclideanDistance(a, b)
}

// EuclideanDistance computes the L2 distance between two vectors.
// Mismatched or empty inputs return +Inf so they can never match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance computes the cosine distance between two vectors
// Returns a value between 0 (identical) and 2 (opposite)
// Cosine distance = 1 - cosine similarity
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0 // Maximum distance for zero vectors
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// MatchPercentage converts a distance into a 0-100 score: (1 - clamp(d, 0, 1)) * 100.
// NaN is treated as the worst distance.
func MatchPercentage(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return (1 - max(0, min(1, distance))) * 100
}

// IsMatch reports whether a distance is within tolerance (inclusive).
func IsMatch(distance, tolerance float64) bool {
	return !math.IsNaN(distance) && distance <= tolerance
}
