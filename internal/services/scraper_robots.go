package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches and caches robots.txt to keep page enrichment polite
type RobotsChecker struct {
	cache     *cache.Cache
	userAgent string
	client    *http.Client
}

// NewRobotsChecker creates a robots.txt checker. Parsed files are cached per
// host for 24 hours.
func NewRobotsChecker(userAgent string) *RobotsChecker {
	return &RobotsChecker{
		cache:     cache.New(24*time.Hour, time.Hour),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// CanFetch reports whether urlStr may be fetched and the crawl delay to
// honor. Missing or unparsable robots.txt allows fetching with a 1s delay.
func (rc *RobotsChecker) CanFetch(ctx context.Context, urlStr string) (bool, time.Duration, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false, 0, fmt.Errorf("invalid URL: %w", err)
	}

	host := parsedURL.Scheme + "://" + parsedURL.Host

	var robotsData *robotstxt.RobotsData
	if cached, found := rc.cache.Get(host); found {
		robotsData = cached.(*robotstxt.RobotsData)
	} else {
		robotsData = rc.fetch(ctx, host)
		if robotsData == nil {
			return true, time.Second, nil
		}
		rc.cache.Set(host, robotsData, cache.DefaultExpiration)
	}

	group := robotsData.FindGroup(rc.userAgent)
	return group.Test(parsedURL.Path), rc.crawlDelay(group), nil
}

// fetch downloads and parses robots.txt; nil means "treat as absent"
func (rc *RobotsChecker) fetch(ctx context.Context, host string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, "GET", host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return data
}

func (rc *RobotsChecker) crawlDelay(group *robotstxt.Group) time.Duration {
	if group.CrawlDelay > 0 {
		delay := group.CrawlDelay
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}
		return delay
	}
	return time.Second
}
