package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/markusmobius/go-trafilatura"
	cache "github.com/patrickmn/go-cache"
)

const (
	scraperUserAgent   = "PibotBot/1.0 (+https://pibot.example.com/bot)"
	scraperMaxBodySize = 10 * 1024 * 1024
	scraperGlobalRate  = 5.0 // requests per second across all domains
	scraperMaxContent  = 4000
)

// ScraperService fetches a web page and extracts its readable main content.
// It backs the web-search capability's top-result enrichment: a failure here
// only means the summary works from snippets alone.
type ScraperService struct {
	client       *ScraperClient
	limiter      *ScrapeLimiter
	robots       *RobotsChecker
	contentCache *cache.Cache
}

// NewScraperService creates the page content scraper
func NewScraperService() *ScraperService {
	return &ScraperService{
		client:       NewScraperClient(scraperUserAgent),
		limiter:      NewScrapeLimiter(scraperGlobalRate),
		robots:       NewRobotsChecker(scraperUserAgent),
		contentCache: cache.New(time.Hour, 10*time.Minute),
	}
}

// FetchReadable downloads urlStr and returns its extracted article text,
// truncated to a summarizer-friendly length
func (s *ScraperService) FetchReadable(ctx context.Context, urlStr string) (string, error) {
	if err := s.validateURL(urlStr); err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if cached, found := s.contentCache.Get(urlStr); found {
		return cached.(string), nil
	}

	allowed, crawlDelay, err := s.robots.CanFetch(ctx, urlStr)
	if err != nil {
		crawlDelay = time.Second
	}
	if !allowed {
		return "", fmt.Errorf("access blocked by robots.txt for: %s", urlStr)
	}

	if err := s.limiter.Wait(ctx, parsedURL.Host, crawlDelay); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	resp, err := s.client.Get(ctx, urlStr)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, resp.Status)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, scraperMaxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: parsedURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	if result == nil || result.ContentText == "" {
		return "", fmt.Errorf("no content extracted from page")
	}

	content := truncateUTF8(result.ContentText, scraperMaxContent)

	s.contentCache.Set(urlStr, content, cache.DefaultExpiration)
	log.Printf("✅ [SCRAPER] Extracted %d chars from %s", len(content), urlStr)
	return content, nil
}

// truncateUTF8 cuts s to at most max bytes, stepping back to the nearest rune
// boundary so a multi-byte character is never split
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// validateURL rejects URLs that could reach internal services (SSRF)
func (s *ScraperService) validateURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("only HTTP/HTTPS URLs are supported, got: %s", parsedURL.Scheme)
	}

	hostname := strings.ToLower(parsedURL.Hostname())
	if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1" {
		return fmt.Errorf("localhost URLs are not allowed")
	}

	privateRanges := []string{
		"192.168.", "10.", "172.16.", "172.17.", "172.18.", "172.19.",
		"172.20.", "172.21.", "172.22.", "172.23.", "172.24.", "172.25.",
		"172.26.", "172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
		"169.254.",
		"fd",
	}
	for _, prefix := range privateRanges {
		if strings.HasPrefix(hostname, prefix) {
			return fmt.Errorf("private IP addresses are not allowed")
		}
	}

	return nil
}
