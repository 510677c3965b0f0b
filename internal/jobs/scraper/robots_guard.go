package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsCacheTTL       = time.Hour
	defaultRobotsTimeout = 10 * time.Second
	robotsUserAgent      = "proxyscout"
)

type robotsCacheEntry struct {
	data    *robotstxt.RobotsData
	fetched time.Time
}

// RobotsGuard answers whether a source url may be fetched according to the
// host's robots.txt. Lookups are cached per host for an hour.
type RobotsGuard struct {
	client  *http.Client
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]robotsCacheEntry
	now     func() time.Time
}

func NewRobotsGuard(client *http.Client, timeout time.Duration) *RobotsGuard {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultRobotsTimeout
	}
	return &RobotsGuard{
		client:  client,
		timeout: timeout,
		entries: make(map[string]robotsCacheEntry),
		now:     time.Now,
	}
}

// Allowed reports whether targetURL may be fetched. A missing or unreachable
// robots.txt allows everything; the fetch error is still returned for logging.
func (g *RobotsGuard) Allowed(ctx context.Context, targetURL string) (bool, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return true, fmt.Errorf("parse robots target: %w", err)
	}
	if parsed.Host == "" {
		return true, fmt.Errorf("parse robots target: missing host in %q", targetURL)
	}

	entry, err := g.load(ctx, parsed)
	if err != nil {
		return true, err
	}
	if entry.data == nil {
		return true, nil
	}

	group := entry.data.FindGroup(robotsUserAgent)
	if group == nil {
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path), nil
}

func (g *RobotsGuard) load(ctx context.Context, parsed *url.URL) (robotsCacheEntry, error) {
	key := robotsCacheKey(parsed)

	g.mu.Lock()
	entry, ok := g.entries[key]
	if ok && g.now().Sub(entry.fetched) > robotsCacheTTL {
		delete(g.entries, key)
		ok = false
	}
	g.mu.Unlock()
	if ok {
		return entry, nil
	}

	entry, err := g.fetch(ctx, parsed)
	if err != nil {
		return entry, err
	}
	entry.fetched = g.now()

	g.mu.Lock()
	g.entries[key] = entry
	g.mu.Unlock()

	return entry, nil
}

func (g *RobotsGuard) fetch(ctx context.Context, parsed *url.URL) (robotsCacheEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsCacheKey(parsed)+"/robots.txt", nil)
	if err != nil {
		return robotsCacheEntry{}, err
	}
	req.Header.Set("User-Agent", robotsUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return robotsCacheEntry{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return robotsCacheEntry{}, nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return robotsCacheEntry{}, err
	}
	return robotsCacheEntry{data: data}, nil
}

func robotsCacheKey(parsed *url.URL) string {
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, parsed.Host)
}
