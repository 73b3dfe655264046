package search

import (
	"context"
	"time"
)

// Provider defines the unified interface for grounded search providers.
// A provider answers a query with synthesized content plus the source URLs
// that ground it.
type Provider interface {
	// Search performs a grounded search for the query
	Search(ctx context.Context, query string, config Config) (*Response, error)

	// GetName returns the name of the search provider
	GetName() string
}

// Config holds configuration for search requests
type Config struct {
	MaxResults int           // Maximum number of underlying results to consider
	SinceTime  time.Duration // Only consider results newer than this duration
	Timeout    time.Duration // Bounded wait per provider call
}

// Response is a unified grounded search answer.
type Response struct {
	Content    string   `json:"content"`     // Synthesized or concatenated result text
	SourceURLs []string `json:"source_urls"` // URLs grounding the content
	Provider   string   `json:"provider"`    // Provider-specific identifier
	Query      string   `json:"query"`       // The query that produced this response
}

// ProviderType represents the type of search provider
type ProviderType string

const (
	ProviderTypeGemini ProviderType = "gemini"
	ProviderTypeGoogle ProviderType = "google"
	ProviderTypeMock   ProviderType = "mock"
)

// ProviderFactory creates search providers based on type and configuration
type ProviderFactory struct{}

// NewProviderFactory creates a new provider factory
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{}
}

// CreateProvider creates a search provider of the specified type
func (f *ProviderFactory) CreateProvider(providerType ProviderType, config map[string]string) (Provider, error) {
	switch providerType {
	case ProviderTypeGemini:
		apiKey, exists := config["api_key"]
		if !exists {
			return nil, ErrMissingAPIKey
		}
		return NewGeminiProvider(apiKey, config["model"])
	case ProviderTypeGoogle:
		apiKey, exists := config["api_key"]
		if !exists {
			return nil, ErrMissingAPIKey
		}
		searchID, exists := config["search_id"]
		if !exists {
			return nil, ErrMissingSearchID
		}
		return NewGoogleProvider(apiKey, searchID), nil
	case ProviderTypeMock:
		return NewMockProvider(), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// GetAvailableProviders returns a list of available provider types
func (f *ProviderFactory) GetAvailableProviders() []ProviderType {
	return []ProviderType{
		ProviderTypeGemini,
		ProviderTypeGoogle,
		ProviderTypeMock,
	}
}
