package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

// Supplier hands out proxies round-robin for the legacy-site fetcher. An
// empty supplier returns "" and the fetcher connects directly.
type Supplier interface {
	Get() string
}

type supplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewSupplier validates the configured proxies against testURL in
// parallel and keeps only the working ones. Validation happens once at
// startup; a proxy that degrades mid-run is handled by the fetcher's own
// retry path.
func NewSupplier(ctx context.Context, proxies []string, testURL string) (Supplier, error) {
	if len(proxies) == 0 {
		return &supplier{}, nil
	}

	log.Infof("Validating %d proxies...", len(proxies))

	var mu sync.Mutex
	valid := make([]string, 0, len(proxies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, proxyURL := range proxies {
		proxyURL := proxyURL
		g.Go(func() error {
			if probe(ctx, proxyURL, testURL) {
				mu.Lock()
				valid = append(valid, proxyURL)
				mu.Unlock()
			} else {
				log.Warnf("Proxy %s failed validation, dropping", proxyURL)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Infof("Proxy pool ready: %d/%d usable", len(valid), len(proxies))
	return &supplier{proxies: valid}, nil
}

func probe(ctx context.Context, proxyURL, testURL string) bool {
	c := resty.New().
		SetProxy(proxyURL).
		SetTimeout(15 * time.Second)
	defer c.Close()

	resp, err := c.R().SetContext(ctx).Get(testURL)
	return err == nil && !resp.IsError()
}

func (s *supplier) Get() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.proxies) == 0 {
		return ""
	}
	p := s.proxies[s.current%len(s.proxies)]
	s.current++
	return p
}
