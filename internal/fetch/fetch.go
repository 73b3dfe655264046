package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout = 20 * time.Second
	maxBodyBytes   = 2 << 20 // 2 MiB is plenty for article pages
	userAgent      = "podgen/1.0 (+https://github.com/podgen/podgen)"
)

// mainContentSelectors are tried in order before falling back to body text.
var mainContentSelectors = []string{
	"article", "main", ".main-content", ".entry-content", ".post-content",
	".post-body", ".article-body",
	"[role='main']",
	".content", "#content",
}

var collapseNewlines = regexp.MustCompile(`(\n\s*){2,}`)

// Client fetches web pages and extracts their readable text for research
// enrichment.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a page fetcher with a bounded request timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// FetchText retrieves the URL and returns the page's main textual content
// with boilerplate stripped.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch %s: status code %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}

	return ExtractText(doc), nil
}

// ExtractText pulls readable text out of a parsed document: non-content
// elements removed, main-content selectors tried first, body text as the
// fallback.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner").Remove()

	var b strings.Builder
	appendBlocks := func(s *goquery.Selection) {
		s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(item.Text())
			if text != "" {
				b.WriteString(text)
				b.WriteString("\n\n")
			}
		})
	}

	for _, selector := range mainContentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			appendBlocks(s)
		})
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		appendBlocks(doc.Find("body"))
	}

	text := collapseNewlines.ReplaceAllString(b.String(), "\n")
	return strings.TrimSpace(text)
}

// ExtractTitle returns the page title, preferring the head title, then the
// OpenGraph title, then the first h1.
func ExtractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); strings.TrimSpace(ogTitle) != "" {
		return strings.TrimSpace(ogTitle)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}
