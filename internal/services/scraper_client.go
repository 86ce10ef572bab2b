package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ScraperClient wraps an HTTP client tuned for fetching article pages
type ScraperClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewScraperClient creates an HTTP client for page fetches
func NewScraperClient(userAgent string) *ScraperClient {
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &ScraperClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (max 10)")
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
}

// Get performs an HTTP GET with browser-ish headers
func (c *ScraperClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "th-TH,th;q=0.9,en;q=0.8")

	return c.httpClient.Do(req)
}
