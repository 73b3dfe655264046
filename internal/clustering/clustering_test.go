package clustering

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"podgen/internal/core"
)

type mockEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (m *mockEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = m.vectors[text]
	}
	return out, nil
}

func TestChooseK(t *testing.T) {
	cases := []struct {
		n, want int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{5, 2},
		{8, 2},
		{9, 3},
		{18, 3},
		{50, 5},
	}
	for _, c := range cases {
		if got := chooseK(c.n); got != c.want {
			t.Errorf("chooseK(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestClusterGroupsSimilarItems(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float64{
		"ai one":    {1, 0, 0},
		"ai two":    {0.9, 0.1, 0},
		"chip one":  {0, 1, 0},
		"chip two":  {0, 0.95, 0.05},
	}}
	engine := NewEngine(embedder)

	items := []Item{
		{ID: "a1", Text: "ai one"},
		{ID: "a2", Text: "ai two"},
		{ID: "c1", Text: "chip one"},
		{ID: "c2", Text: "chip two"},
	}

	result, err := engine.Cluster(context.Background(), items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.ClusterAssignments) != 4 {
		t.Fatalf("Expected 4 assignments, got %d", len(result.ClusterAssignments))
	}
	if result.ClusterAssignments[0] != result.ClusterAssignments[1] {
		t.Error("Expected the two AI items in the same cluster")
	}
	if result.ClusterAssignments[2] != result.ClusterAssignments[3] {
		t.Error("Expected the two chip items in the same cluster")
	}
	if result.ClusterAssignments[0] == result.ClusterAssignments[2] {
		t.Error("Expected AI and chip items in different clusters")
	}
}

func TestClusterEveryIDAppearsOnce(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float64{
		"t1": {1, 0}, "t2": {0.8, 0.2}, "t3": {0, 1}, "t4": {0.1, 0.9}, "t5": {0.5, 0.5},
	}}
	engine := NewEngine(embedder)

	items := []Item{
		{ID: "id1", Text: "t1"}, {ID: "id2", Text: "t2"}, {ID: "id3", Text: "t3"},
		{ID: "id4", Text: "t4"}, {ID: "id5", Text: "t5"},
	}

	result, err := engine.Cluster(context.Background(), items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	seen := make(map[string]int)
	for _, members := range result.Clusters {
		for _, id := range members {
			seen[id]++
		}
	}
	for _, item := range items {
		if seen[item.ID] != 1 {
			t.Errorf("Expected %s to appear in exactly one cluster, appeared %d times", item.ID, seen[item.ID])
		}
	}
}

func TestClusterDeterministic(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float64{
		"t1": {1, 0, 0}, "t2": {0.7, 0.3, 0}, "t3": {0, 1, 0},
		"t4": {0, 0.8, 0.2}, "t5": {0, 0, 1}, "t6": {0.1, 0, 0.9},
	}}
	engine := NewEngine(embedder)

	items := []Item{
		{ID: "id1", Text: "t1"}, {ID: "id2", Text: "t2"}, {ID: "id3", Text: "t3"},
		{ID: "id4", Text: "t4"}, {ID: "id5", Text: "t5"}, {ID: "id6", Text: "t6"},
	}

	first, err := engine.Cluster(context.Background(), items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := engine.Cluster(context.Background(), items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !reflect.DeepEqual(first.ClusterAssignments, second.ClusterAssignments) {
		t.Errorf("Expected identical assignments across runs, got %v and %v",
			first.ClusterAssignments, second.ClusterAssignments)
	}
}

func TestClusterEmbeddingFailureReturnsEmpty(t *testing.T) {
	engine := NewEngine(&mockEmbedder{err: errors.New("quota exceeded")})

	items := []Item{
		{ID: "id1", Text: "a"}, {ID: "id2", Text: "b"}, {ID: "id3", Text: "c"},
		{ID: "id4", Text: "d"}, {ID: "id5", Text: "e"},
	}

	result, err := engine.Cluster(context.Background(), items)
	if err == nil {
		t.Error("Expected error surfaced for embedding failure")
	}
	if !result.Empty() {
		t.Errorf("Expected empty cluster result, got %+v", result)
	}
	if len(result.Clusters) != 0 || len(result.Noise) != 0 || len(result.ClusterAssignments) != 0 {
		t.Errorf("Expected no partial clusters, got %+v", result)
	}
}

func TestClusterDropsEmptyEmbeddingsToNoise(t *testing.T) {
	embedder := &mockEmbedder{vectors: map[string][]float64{
		"t1": {1, 0}, "t2": {0.9, 0.1}, "t3": nil,
	}}
	engine := NewEngine(embedder)

	items := []Item{
		{ID: "id1", Text: "t1"}, {ID: "id2", Text: "t2"}, {ID: "id3", Text: "t3"},
	}

	result, err := engine.Cluster(context.Background(), items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Noise) != 1 || result.Noise[0] != "id3" {
		t.Errorf("Expected id3 dropped to noise, got %v", result.Noise)
	}
	if result.ClusterAssignments[2] != -1 {
		t.Errorf("Expected noise assignment -1, got %d", result.ClusterAssignments[2])
	}
	for _, members := range result.Clusters {
		for _, id := range members {
			if id == "id3" {
				t.Error("Expected noise item absent from clusters")
			}
		}
	}
}

func TestClusterEmptyInput(t *testing.T) {
	engine := NewEngine(&mockEmbedder{})
	result, err := engine.Cluster(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected no error for empty input, got %v", err)
	}
	if !result.Empty() {
		t.Errorf("Expected empty result for empty input, got %+v", result)
	}
}

func TestConsolidatePicksHighestScore(t *testing.T) {
	result := core.ClusterResult{
		Clusters: map[int][]string{
			0: {"AI Safety", "AI Alignment"},
			1: {"Chip Export Rules"},
		},
		ClusterAssignments: []int{0, 0, 1, -1},
		Noise:              []string{"Fusion Funding"},
	}
	candidates := []core.TopicCandidate{
		{Topic: "AI Safety", Score: 120},
		{Topic: "AI Alignment", Score: 95},
		{Topic: "Chip Export Rules", Score: 88},
		{Topic: "Fusion Funding", Score: 60},
	}

	consolidated := Consolidate(result, candidates)
	if len(consolidated) != 3 {
		t.Fatalf("Expected 3 consolidated candidates, got %d", len(consolidated))
	}
	got := map[string]bool{}
	for _, c := range consolidated {
		got[c.Topic] = true
	}
	if !got["AI Safety"] || got["AI Alignment"] {
		t.Error("Expected the higher-scored cluster member kept")
	}
	if !got["Chip Export Rules"] || !got["Fusion Funding"] {
		t.Error("Expected singleton cluster and noise candidates kept")
	}
}

func TestConsolidateEmptyResultPassesThrough(t *testing.T) {
	candidates := []core.TopicCandidate{{Topic: "A"}, {Topic: "B"}}
	consolidated := Consolidate(core.ClusterResult{}, candidates)
	if !reflect.DeepEqual(consolidated, candidates) {
		t.Errorf("Expected candidates unchanged when clustering unavailable, got %v", consolidated)
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance([]float64{1, 0}, []float64{1, 0}); d > 1e-9 {
		t.Errorf("Expected zero distance for identical vectors, got %v", d)
	}
	if d := CosineDistance([]float64{1, 0}, []float64{0, 1}); d != 1.0 {
		t.Errorf("Expected distance 1 for orthogonal vectors, got %v", d)
	}
	if d := CosineDistance([]float64{0, 0}, []float64{1, 0}); d != 1.0 {
		t.Errorf("Expected zero vector maximally distant, got %v", d)
	}
	if d := CosineDistance([]float64{1}, []float64{1, 0}); d != 1.0 {
		t.Errorf("Expected mismatched lengths maximally distant, got %v", d)
	}
}
