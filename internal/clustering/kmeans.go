package clustering

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeansConfig holds configuration for k-means clustering.
type KMeansConfig struct {
	MaxIterations int   // Maximum number of iterations
	Seed          int64 // RNG seed; fixed so a batch clusters reproducibly
}

// DefaultKMeansConfig returns sensible defaults for k-means clustering.
func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{
		MaxIterations: 100,
		Seed:          42,
	}
}

// ceilSqrtHalf computes ceil(sqrt(n/2)).
func ceilSqrtHalf(n int) int {
	return int(math.Ceil(math.Sqrt(float64(n) / 2)))
}

// runKMeans executes k-means over the embeddings and returns the cluster
// label per input. Convergence is assignment stability.
func runKMeans(embeddings [][]float64, k int, config KMeansConfig) ([]int, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings provided")
	}
	if k <= 0 || k > len(embeddings) {
		return nil, fmt.Errorf("invalid k: %d (must be 1-%d)", k, len(embeddings))
	}

	dim := len(embeddings[0])
	rng := rand.New(rand.NewSource(config.Seed))

	centroids := initializeCentroidsKMeansPP(embeddings, k, dim, rng)

	var assignments []int
	converged := false

	for iteration := 0; iteration < config.MaxIterations && !converged; iteration++ {
		newAssignments := make([]int, len(embeddings))
		for i, embedding := range embeddings {
			newAssignments[i] = findNearestCentroid(embedding, centroids)
		}

		if iteration > 0 {
			converged = true
			for i := range assignments {
				if assignments[i] != newAssignments[i] {
					converged = false
					break
				}
			}
		}

		assignments = newAssignments

		if !converged {
			centroids = updateCentroids(embeddings, assignments, k, dim)
		}
	}

	return assignments, nil
}

// initializeCentroidsKMeansPP uses k-means++ initialization for better
// cluster quality.
func initializeCentroidsKMeansPP(embeddings [][]float64, k, dim int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, k)

	firstIndex := rng.Intn(len(embeddings))
	centroids[0] = make([]float64, dim)
	copy(centroids[0], embeddings[firstIndex])

	for i := 1; i < k; i++ {
		distances := make([]float64, len(embeddings))
		totalDistance := 0.0

		// Squared distance from each point to its nearest existing centroid
		for j, embedding := range embeddings {
			minDist := math.Inf(1)
			for c := 0; c < i; c++ {
				dist := CosineDistance(embedding, centroids[c])
				if dist < minDist {
					minDist = dist
				}
			}
			distances[j] = minDist * minDist
			totalDistance += distances[j]
		}

		if totalDistance == 0 {
			randomIndex := rng.Intn(len(embeddings))
			centroids[i] = make([]float64, dim)
			copy(centroids[i], embeddings[randomIndex])
			continue
		}

		// Next centroid chosen with probability proportional to squared distance
		target := rng.Float64() * totalDistance
		cumulative := 0.0
		selectedIndex := 0
		for j, dist := range distances {
			cumulative += dist
			if cumulative >= target {
				selectedIndex = j
				break
			}
		}

		centroids[i] = make([]float64, dim)
		copy(centroids[i], embeddings[selectedIndex])
	}

	return centroids
}

// findNearestCentroid returns the index of the nearest centroid by cosine
// distance.
func findNearestCentroid(embedding []float64, centroids [][]float64) int {
	minDistance := math.Inf(1)
	nearestIndex := 0

	for i, centroid := range centroids {
		distance := CosineDistance(embedding, centroid)
		if distance < minDistance {
			minDistance = distance
			nearestIndex = i
		}
	}

	return nearestIndex
}

// updateCentroids recalculates centroids as the mean of their members.
// Empty clusters keep a zero centroid.
func updateCentroids(embeddings [][]float64, assignments []int, k, dim int) [][]float64 {
	centroids := make([][]float64, k)
	counts := make([]int, k)

	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}

	for i, embedding := range embeddings {
		clusterID := assignments[i]
		counts[clusterID]++
		for j := range embedding {
			centroids[clusterID][j] += embedding[j]
		}
	}

	for i := range centroids {
		if counts[i] > 0 {
			for j := range centroids[i] {
				centroids[i][j] /= float64(counts[i])
			}
		}
	}

	return centroids
}

// CosineDistance computes 1 - cosine similarity between two vectors.
// Zero vectors are maximally distant.
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
