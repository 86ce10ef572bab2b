package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ScrapeLimiter applies two-tier rate limiting to page fetches: a global cap
// protecting the process and a per-domain cap respecting target sites'
// crawl delays.
type ScrapeLimiter struct {
	global     *rate.Limiter
	perDomain  sync.Map // map[string]*rate.Limiter
	globalRate float64
}

// NewScrapeLimiter creates a limiter with the given global requests/second
func NewScrapeLimiter(globalRate float64) *ScrapeLimiter {
	return &ScrapeLimiter{
		global:     rate.NewLimiter(rate.Limit(globalRate), int(globalRate*2)),
		globalRate: globalRate,
	}
}

// Wait blocks until both tiers admit a fetch for domain, honoring the
// robots.txt crawl delay when creating the domain limiter
func (l *ScrapeLimiter) Wait(ctx context.Context, domain string, crawlDelay time.Duration) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}
	return l.domainLimiter(domain, crawlDelay).Wait(ctx)
}

func (l *ScrapeLimiter) domainLimiter(domain string, crawlDelay time.Duration) *rate.Limiter {
	if limiter, ok := l.perDomain.Load(domain); ok {
		return limiter.(*rate.Limiter)
	}

	perSecond := 2.0
	if crawlDelay > 0 {
		perSecond = 1.0 / crawlDelay.Seconds()
	}
	if perSecond > 5.0 {
		perSecond = 5.0
	}
	if perSecond < 0.2 {
		perSecond = 0.2 // at least one request per 5 seconds
	}

	newLimiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	actual, _ := l.perDomain.LoadOrStore(domain, newLimiter)
	return actual.(*rate.Limiter)
}
