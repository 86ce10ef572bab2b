package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const (
	searchCacheTTL    = 10 * time.Minute
	maxSearchSnippets = 5
)

// SearchResult is one entry from the search engine
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchService queries a SearXNG instance for time-sensitive questions.
// Identical queries within a short window hit the cache instead of the
// engine; an empty result list is a signal, not an error.
type SearchService struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache
	scraper *ScraperService // optional top-result enrichment
}

// NewSearchService creates a search client for the given SearXNG base URL.
// scraper may be nil to disable page enrichment.
func NewSearchService(baseURL string, scraper *ScraperService) *SearchService {
	return &SearchService{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 20 * time.Second},
		cache:   cache.New(searchCacheTTL, 5*time.Minute),
		scraper: scraper,
	}
}

type searxngResponse struct {
	Results []SearchResult `json:"results"`
}

// Search runs a query and returns ordered results. A nil/empty slice with a
// nil error means the engine found nothing usable.
func (s *SearchService) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if cached, found := s.cache.Get(query); found {
		return cached.([]SearchResult), nil
	}

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json", s.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed searxngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := parsed.Results
	if len(results) > maxSearchSnippets {
		results = results[:maxSearchSnippets]
	}

	s.cache.Set(query, results, cache.DefaultExpiration)
	log.Printf("🔍 [SEARCH] %q returned %d results", query, len(results))
	return results, nil
}

// Snippets flattens results into summarizer input lines. When the scraper is
// configured, the top result's page content is appended for a richer answer;
// enrichment is best-effort and its failure is only logged.
func (s *SearchService) Snippets(ctx context.Context, results []SearchResult) []string {
	snippets := make([]string, 0, len(results)+1)
	for _, r := range results {
		snippets = append(snippets, fmt.Sprintf("%s — %s (%s)", r.Title, r.Content, r.URL))
	}

	if s.scraper != nil && len(results) > 0 {
		content, err := s.scraper.FetchReadable(ctx, results[0].URL)
		if err != nil {
			log.Printf("⚠️  [SEARCH] Top result enrichment skipped: %v", err)
		} else if content != "" {
			snippets = append(snippets, "Top page content: "+content)
		}
	}

	return snippets
}
