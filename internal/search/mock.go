package search

import (
	"context"
	"fmt"
)

// MockProvider implements Provider for testing purposes
type MockProvider struct {
	name     string
	response *Response
	err      error
}

// NewMockProvider creates a new mock search provider
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "Mock"}
}

// GetName returns the name of this provider
func (m *MockProvider) GetName() string {
	return m.name
}

// SetName overrides the provider name
func (m *MockProvider) SetName(name string) {
	m.name = name
}

// SetResponse sets a canned response for subsequent searches
func (m *MockProvider) SetResponse(resp *Response) {
	m.response = resp
}

// SetError makes subsequent searches fail with the given error
func (m *MockProvider) SetError(err error) {
	m.err = err
}

// Search returns the canned response, or a synthesized one echoing the query
func (m *MockProvider) Search(ctx context.Context, query string, config Config) (*Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.response != nil {
		resp := *m.response
		resp.Query = query
		return &resp, nil
	}
	return &Response{
		Content: fmt.Sprintf("Mock grounded answer for %q. Recent coverage suggests steady developments in this area.", query),
		SourceURLs: []string{
			"https://example.com/articles/1",
			"https://example.org/analysis/2",
		},
		Provider: "mock",
		Query:    query,
	}, nil
}
