package search

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"podgen/internal/logger"
)

// GeminiProvider implements Provider using Gemini with Google Search
// grounding. The model synthesizes an answer and reports the web sources it
// drew from.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

// NewGeminiProvider creates a grounded-search provider backed by Gemini.
func NewGeminiProvider(apiKey, modelName string) (*GeminiProvider, error) {
	if modelName == "" {
		modelName = "gemini-flash-lite-latest"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini search client: %w", err)
	}
	return &GeminiProvider{client: client, modelName: modelName}, nil
}

// GetName returns the name of this provider
func (g *GeminiProvider) GetName() string {
	return "Gemini Grounded Search"
}

// Search performs a grounded search using Gemini's Google Search tool
func (g *GeminiProvider) Search(ctx context.Context, query string, config Config) (*Response, error) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: query}},
		Role:  "user",
	}}

	genConfig := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, genConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini grounded search failed: %w", err)
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return nil, ErrNoResults
	}

	urls := groundingURLs(resp)
	logger.Debug("Gemini grounded search completed", "query", query, "sources", len(urls))

	return &Response{
		Content:    content,
		SourceURLs: urls,
		Provider:   "gemini",
		Query:      query,
	}, nil
}

// groundingURLs pulls the web source URIs out of the grounding metadata.
func groundingURLs(resp *genai.GenerateContentResponse) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			if seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			urls = append(urls, chunk.Web.URI)
		}
	}
	return urls
}
