package clustering

import (
	"context"
	"fmt"

	"podgen/internal/core"
	"podgen/internal/logger"
)

// Item is a single unit of clusterable text. IDs must be unique within a
// batch.
type Item struct {
	ID   string
	Text string
}

// Embedder produces one embedding vector per input text. Satisfied by
// *llm.Client, which handles batching and truncation internally.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float64, error)
}

// Engine clusters items by embedding similarity using seeded k-means, so
// the same batch always produces the same clusters.
type Engine struct {
	embedder Embedder
	config   KMeansConfig
}

// NewEngine creates a clustering engine over the given embedder.
func NewEngine(embedder Embedder) *Engine {
	return &Engine{
		embedder: embedder,
		config:   DefaultKMeansConfig(),
	}
}

// Cluster embeds all items and groups them with k-means. Any embedding
// failure aborts clustering and returns an empty ClusterResult alongside
// the error; callers treat the empty result as "clustering unavailable",
// never as zero clusters found. Items whose individual embedding came back
// empty are dropped to Noise with assignment -1, never duplicated.
func (e *Engine) Cluster(ctx context.Context, items []Item) (core.ClusterResult, error) {
	empty := core.ClusterResult{
		Clusters:           map[int][]string{},
		ClusterAssignments: []int{},
		Noise:              []string{},
	}

	if len(items) == 0 {
		return empty, nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}

	embeddings, err := e.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		logger.Get().Warn("Embedding failed, clustering unavailable", "items", len(items), "error", err)
		return empty, fmt.Errorf("failed to embed items for clustering: %w", err)
	}
	if len(embeddings) != len(items) {
		logger.Get().Warn("Embedding count mismatch, clustering unavailable",
			"items", len(items), "embeddings", len(embeddings))
		return empty, fmt.Errorf("embedding count mismatch: %d items, %d vectors", len(items), len(embeddings))
	}

	// Split out items the provider returned empty vectors for.
	result := core.ClusterResult{
		Clusters:           map[int][]string{},
		ClusterAssignments: make([]int, len(items)),
		Noise:              []string{},
	}
	var validIdx []int
	var validEmbeddings [][]float64
	for i, emb := range embeddings {
		if len(emb) == 0 {
			logger.Get().Warn("Item embedding empty, dropping from clustering", "id", items[i].ID)
			result.ClusterAssignments[i] = -1
			result.Noise = append(result.Noise, items[i].ID)
			continue
		}
		validIdx = append(validIdx, i)
		validEmbeddings = append(validEmbeddings, emb)
	}
	if len(validIdx) == 0 {
		return empty, fmt.Errorf("no items produced usable embeddings")
	}

	k := chooseK(len(validIdx))
	assignments, err := runKMeans(validEmbeddings, k, e.config)
	if err != nil {
		return empty, fmt.Errorf("k-means failed: %w", err)
	}

	for j, idx := range validIdx {
		cluster := assignments[j]
		result.ClusterAssignments[idx] = cluster
		result.Clusters[cluster] = append(result.Clusters[cluster], items[idx].ID)
	}

	logger.Get().Info("Clustering complete", "items", len(items), "k", k, "noise", len(result.Noise))
	return result, nil
}

// Consolidate reduces ranked topic candidates to one representative per
// cluster, keeping the highest-scored member. Candidates dropped to noise
// survive as their own entries. Candidates are matched to cluster ids by
// topic title. Order follows descending representative score via input
// order, which is already rank-sorted.
func Consolidate(result core.ClusterResult, candidates []core.TopicCandidate) []core.TopicCandidate {
	if result.Empty() {
		return candidates
	}

	byID := make(map[string]core.TopicCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.Topic] = c
	}

	chosen := make(map[string]bool)
	for _, members := range result.Clusters {
		var best core.TopicCandidate
		found := false
		for _, id := range members {
			c, ok := byID[id]
			if !ok {
				continue
			}
			if !found || c.Score > best.Score {
				best = c
				found = true
			}
		}
		if found {
			chosen[best.Topic] = true
		}
	}
	for _, id := range result.Noise {
		if _, ok := byID[id]; ok {
			chosen[id] = true
		}
	}

	var consolidated []core.TopicCandidate
	for _, c := range candidates {
		if chosen[c.Topic] {
			consolidated = append(consolidated, c)
		}
	}
	return consolidated
}

// chooseK picks the cluster count heuristically from batch size:
// k = max(1, min(n, ceil(sqrt(n/2)))).
func chooseK(n int) int {
	k := ceilSqrtHalf(n)
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}
	return k
}
