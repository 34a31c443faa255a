// Package fetch provides the plain HTTP fetcher used for enrichment visits to
// external business websites. Listing and profile pages go through the
// browser session instead; only third-party sites are fetched directly.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omipheo/home-advisor-scraping/internal/cache"
	"github.com/omipheo/home-advisor-scraping/internal/ratelimit"
	"github.com/omipheo/home-advisor-scraping/internal/retry"
	urlutil "github.com/omipheo/home-advisor-scraping/internal/utils/url"
)

// maxBodySize caps how much of a business website we read. Contact details
// live near the top of the document.
const maxBodySize = 2 * 1024 * 1024

// Fetcher retrieves external web pages with browser-like headers, per-domain
// rate limiting and a body cache.
type Fetcher struct {
	client    *http.Client
	limiter   ratelimit.RateLimiter
	cache     cache.Cache
	userAgent string
	cacheTTL  time.Duration
}

// New creates a Fetcher.
func New(client *http.Client, limiter ratelimit.RateLimiter, c cache.Cache, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Fetcher{
		client:    client,
		limiter:   limiter,
		cache:     c,
		userAgent: userAgent,
		cacheTTL:  15 * time.Minute,
	}
}

// Body fetches the page at pageURL and returns its raw body. A cached body is
// returned without a network round trip.
func (f *Fetcher) Body(ctx context.Context, pageURL string) (string, error) {
	if err := urlutil.ValidateURL(pageURL); err != nil {
		return "", err
	}

	if f.cache != nil {
		if body, ok := f.cache.Get(pageURL); ok {
			return body, nil
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, pageURL); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", retry.NewHTTPError(resp.StatusCode, resp.Status, "website fetch failed")
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "text") {
		return "", fmt.Errorf("fetch %s: unsupported content type %q", pageURL, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}

	body := string(data)
	if f.cache != nil {
		_ = f.cache.Set(pageURL, body, f.cacheTTL)
	}

	log.Debug().
		Str("url", pageURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched website")

	return body, nil
}
