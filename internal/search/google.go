package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"podgen/internal/logger"
)

const googleSearchURL = "https://www.googleapis.com/customsearch/v1"

// GoogleProvider implements Provider using Google Custom Search API. Result
// snippets are concatenated into the response content. Safe for concurrent
// use; the rate-limit window is guarded by mu.
type GoogleProvider struct {
	apiKey    string
	searchID  string
	client    *http.Client
	baseURL   string
	rateLimit time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewGoogleProvider creates a new Google Custom Search provider
func NewGoogleProvider(apiKey, searchID string) *GoogleProvider {
	return &GoogleProvider{
		apiKey:    apiKey,
		searchID:  searchID,
		client:    &http.Client{Timeout: 30 * time.Second},
		baseURL:   googleSearchURL,
		rateLimit: 100 * time.Millisecond,
	}
}

// throttle spaces calls by the rate-limit window. The lock is held through
// the sleep so concurrent callers queue behind it.
func (g *GoogleProvider) throttle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if elapsed := time.Since(g.lastCall); elapsed < g.rateLimit {
		time.Sleep(g.rateLimit - elapsed)
	}
	g.lastCall = time.Now()
}

// GetName returns the name of this provider
func (g *GoogleProvider) GetName() string {
	return "Google Custom Search"
}

// Search performs a search using Google Custom Search API
func (g *GoogleProvider) Search(ctx context.Context, query string, config Config) (*Response, error) {
	g.throttle()

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	maxResults := config.MaxResults
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 10 // Google CSE allows max 10 results per request
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.searchID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(maxResults))

	if config.SinceTime > 0 {
		days := int(config.SinceTime.Hours() / 24)
		if days < 1 {
			days = 1
		}
		params.Set("sort", "date:r:"+time.Now().AddDate(0, 0, -days).Format("20060102"))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google CSE request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute Google CSE request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google CSE request failed with status: %d", resp.StatusCode)
	}

	var apiResponse struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse Google CSE response: %w", err)
	}

	if apiResponse.Error.Code != 0 {
		return nil, fmt.Errorf("google CSE API error (%d): %s", apiResponse.Error.Code, apiResponse.Error.Message)
	}

	if len(apiResponse.Items) == 0 {
		return nil, ErrNoResults
	}

	var content strings.Builder
	urls := make([]string, 0, len(apiResponse.Items))
	for _, item := range apiResponse.Items {
		content.WriteString(item.Title)
		content.WriteString(": ")
		content.WriteString(item.Snippet)
		content.WriteString("\n")
		urls = append(urls, item.Link)
	}

	logger.Debug("Google Custom Search completed", "query", query, "results_found", len(urls))

	return &Response{
		Content:    content.String(),
		SourceURLs: urls,
		Provider:   "google",
		Query:      query,
	}, nil
}
