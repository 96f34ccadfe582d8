package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"vtex/migrator/internal/config"
	"vtex/migrator/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// Fetcher retrieves legacy-site product pages. It paces requests with a
// token bucket and backs off for a fixed window when the site reports an
// exhausted quota, rotating to a fresh proxy first when one is available.
type Fetcher struct {
	rl         ratelimit.Limiter
	httpClient *resty.Client
	proxies    proxy.Supplier

	mu           sync.RWMutex
	blockedUntil time.Time
	blockDelay   time.Duration
}

func NewFetcher(cfg config.LegacyConfig, proxies proxy.Supplier) *Fetcher {
	httpClient := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(15*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.5")

	if proxies != nil {
		if proxyURL := proxies.Get(); proxyURL != "" {
			httpClient.SetProxy(proxyURL)
			log.Infof("Fetcher using proxy %s", proxyURL)
		}
	}

	rps := cfg.MaxRequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Fetcher{
		rl:         ratelimit.New(rps),
		httpClient: httpClient,
		proxies:    proxies,
		blockDelay: 30 * time.Minute,
	}
}

// FetchHTML returns the page body for url.
func (f *Fetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	if remaining := f.blockedFor(); remaining > 0 {
		return "", fmt.Errorf("fetcher blocked for %v after quota exhaustion", remaining.Round(time.Second))
	}

	f.rl.Take()

	resp, err := f.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("fetch cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode())
	}

	html := resp.String()
	if !isQuotaExceeded(html) {
		return html, nil
	}

	// Quota page instead of content. Try once more through a fresh proxy
	// before blocking the fetcher.
	if f.proxies != nil {
		if proxyURL := f.proxies.Get(); proxyURL != "" {
			log.Warnf("Quota exceeded fetching %s, rotating to proxy %s", url, proxyURL)
			f.httpClient.SetProxy(proxyURL)

			retry, retryErr := f.httpClient.R().SetContext(ctx).Get(url)
			if retryErr == nil && !retry.IsError() && !isQuotaExceeded(retry.String()) {
				return retry.String(), nil
			}
		}
	}

	f.block()
	return "", fmt.Errorf("fetch %s: quota exceeded, fetcher blocked for %v", url, f.blockDelay)
}

func isQuotaExceeded(html string) bool {
	return strings.Contains(html, "Quota Exceeded") || strings.Contains(html, "Too Many Requests")
}

func (f *Fetcher) blockedFor() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	remaining := time.Until(f.blockedUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (f *Fetcher) block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockedUntil = time.Now().Add(f.blockDelay)
	log.Warnf("Fetcher blocked until %s", f.blockedUntil.Format("15:04:05"))
}
