// Package websearch provides a web search tool backed by a SearXNG
// instance, fitting a local-first deployment where the search engine runs
// alongside the agent.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/denker-ai/denker/pkg/tools"
)

const defaultMaxResults = 5

var schema = json.RawMessage(`{
	"type": "object",
	"required": ["query"],
	"properties": {
		"query": {
			"type": "string",
			"description": "Search query"
		}
	}
}`)

// SearchResult is one hit returned by a search backend.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher queries a search backend.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// Config adjusts the web search tool.
type Config struct {
	// URL is the base URL of the SearXNG instance. Required.
	URL string

	// MaxResults caps the hits returned per query. Zero selects 5.
	MaxResults int
}

// Tool implements web_search over a Searcher.
type Tool struct {
	searcher   Searcher
	maxResults int
}

var _ tools.Tool = (*Tool)(nil)

// New creates the tool against a SearXNG instance.
func New(cfg Config) (*Tool, error) {
	if cfg.URL == "" {
		return nil, errors.New("websearch: SearXNG URL is required")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	return &Tool{
		searcher:   newSearXNG(cfg.URL),
		maxResults: cfg.MaxResults,
	}, nil
}

// NewWithSearcher creates the tool over a custom backend.
func NewWithSearcher(s Searcher, maxResults int) *Tool {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Tool{searcher: s, maxResults: maxResults}
}

func (t *Tool) Name() string { return "web_search" }

func (t *Tool) Description() string {
	return "Search the web for current information."
}

func (t *Tool) Schema() json.RawMessage { return schema }

func (t *Tool) Execute(ctx context.Context, arguments string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", errors.New("query must not be empty")
	}

	results, err := t.searcher.Search(ctx, args.Query, t.maxResults)
	if err != nil {
		return "", fmt.Errorf("search failed: %v", err)
	}
	return formatResults(args.Query, results), nil
}

func formatResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   URL: %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}

// htmlTagRegex strips markup SearXNG leaves in titles and snippets.
var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

type searxng struct {
	baseURL string
	client  *http.Client
}

func newSearXNG(baseURL string) *searxng {
	return &searxng{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type searxngResponse struct {
	Results []searxngResult `json:"results"`
}

type searxngResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (s *searxng) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s&format=json&categories=general",
		s.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}

	var sr searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]SearchResult, 0, min(len(sr.Results), maxResults))
	for i, r := range sr.Results {
		if i >= maxResults {
			break
		}
		results = append(results, SearchResult{
			Title:   stripHTML(r.Title),
			URL:     r.URL,
			Snippet: stripHTML(r.Content),
		})
	}
	return results, nil
}

func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagRegex.ReplaceAllString(s, ""))
}
