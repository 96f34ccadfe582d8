package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"vtex/migrator/internal/config"

	"github.com/gocolly/colly"
	log "github.com/sirupsen/logrus"
)

// Discovery walks the legacy site's sitemap and collects product page
// URLs. Sitemap index files are followed one level of nesting at a time;
// when the sitemap yields nothing it falls back to a shallow link crawl
// from the base URL.
type Discovery struct {
	cfg     config.LegacyConfig
	pattern *regexp.Regexp
}

func NewDiscovery(cfg config.LegacyConfig) (*Discovery, error) {
	pattern, err := regexp.Compile(cfg.ProductURLPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid product_url_pattern %q: %w", cfg.ProductURLPattern, err)
	}
	return &Discovery{cfg: cfg, pattern: pattern}, nil
}

// ProductURLs returns up to limit product URLs in discovery order.
// limit <= 0 means unbounded.
func (d *Discovery) ProductURLs(ctx context.Context, limit int) ([]string, error) {
	base, err := url.Parse(d.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url %q: %w", d.cfg.BaseURL, err)
	}

	sitemapURL := d.cfg.SitemapURL
	if sitemapURL == "" {
		sitemapURL = strings.TrimRight(d.cfg.BaseURL, "/") + "/sitemap.xml"
	}

	seen := make(map[string]struct{})
	var found []string
	full := func() bool { return limit > 0 && len(found) >= limit }
	collect := func(pageURL string) {
		if full() || !d.pattern.MatchString(pageURL) {
			return
		}
		if _, dup := seen[pageURL]; dup {
			return
		}
		seen[pageURL] = struct{}{}
		found = append(found, pageURL)
	}

	collector := d.newCollector(base.Host)

	collector.OnXML("//urlset/url/loc", func(e *colly.XMLElement) {
		collect(strings.TrimSpace(e.Text))
	})
	collector.OnXML("//sitemapindex/sitemap/loc", func(e *colly.XMLElement) {
		if full() || ctx.Err() != nil {
			return
		}
		if err := e.Request.Visit(strings.TrimSpace(e.Text)); err != nil {
			log.Debugf("Skipping nested sitemap %s: %v", e.Text, err)
		}
	})

	log.Infof("Discovering product URLs from %s", sitemapURL)
	if err := collector.Visit(sitemapURL); err != nil {
		log.Warnf("Sitemap fetch failed (%v), falling back to link crawl", err)
	}
	collector.Wait()

	if len(found) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found = d.crawlLinks(ctx, base, seen, limit)
	}

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	log.Infof("Discovered %d product URLs", len(found))
	return found, ctx.Err()
}

// crawlLinks walks anchors from the base URL a few levels deep, keeping
// only product pages. Used when the site has no usable sitemap.
func (d *Discovery) crawlLinks(ctx context.Context, base *url.URL, seen map[string]struct{}, limit int) []string {
	var found []string
	full := func() bool { return limit > 0 && len(found) >= limit }

	collector := d.newCollector(base.Host, colly.MaxDepth(3))
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if full() || ctx.Err() != nil {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if d.pattern.MatchString(link) {
			if _, dup := seen[link]; !dup {
				seen[link] = struct{}{}
				found = append(found, link)
			}
			return
		}
		if err := e.Request.Visit(link); err != nil {
			log.Debugf("Skipping link %s: %v", link, err)
		}
	})

	log.Infof("Crawling links from %s", base.String())
	if err := collector.Visit(base.String()); err != nil {
		log.Warnf("Link crawl failed: %v", err)
	}
	collector.Wait()
	return found
}

func (d *Discovery) newCollector(host string, opts ...func(*colly.Collector)) *colly.Collector {
	opts = append(opts,
		colly.AllowedDomains(host),
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
	)
	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(time.Duration(d.cfg.Timeout) * time.Second)

	delay := time.Second
	if d.cfg.MaxRequestsPerSecond > 0 {
		delay = time.Second / time.Duration(d.cfg.MaxRequestsPerSecond)
	}
	if err := collector.Limit(&colly.LimitRule{DomainGlob: "*", Delay: delay}); err != nil {
		log.Warnf("Failed to apply crawl rate limit: %v", err)
	}
	return collector
}
