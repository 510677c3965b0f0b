package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"proxyscout/internal/config"
)

// BrowserFetcher renders sources in a headless browser. The browser is
// launched on first use and lives until Close.
type BrowserFetcher struct {
	timeout time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

func NewBrowserFetcher(timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &BrowserFetcher{timeout: timeout}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, source config.Source) ([]byte, error) {
	browser, err := f.ensureBrowser()
	if err != nil {
		return nil, fmt.Errorf("scraper: browser %s: %w", source.URL, err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		f.reset()
		return nil, fmt.Errorf("scraper: stealth page: %w", err)
	}
	defer func() {
		_ = rod.Try(func() { page.MustClose() })
	}()

	// Deny disk downloads for this page.
	_ = proto.PageSetDownloadBehavior{
		Behavior: proto.PageSetDownloadBehaviorBehaviorDeny,
	}.Call(page)

	p := page.Context(ctx).Timeout(f.timeout)
	if err := p.Navigate(source.URL); err != nil {
		return nil, fmt.Errorf("scraper: navigate %s: %w", source.URL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("scraper: wait load %s: %w", source.URL, err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("scraper: read html %s: %w", source.URL, err)
	}
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("scraper: empty document from %s", source.URL)
	}
	return []byte(html), nil
}

func (f *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	l := launcher.New().
		Leakless(true).
		Headless(true).
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding")
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := connectOrKill(b.Connect, l.Kill, time.Sleep); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	log.Debug("Headless browser started")
	f.browser = b
	return b, nil
}

const browserConnectAttempts = 5

// connectOrKill retries connect with a growing pause. When every attempt
// fails the launched process is killed so no orphaned browser is left behind.
func connectOrKill(connect func() error, kill func(), sleep func(time.Duration)) error {
	var err error
	for i := 0; i < browserConnectAttempts; i++ {
		if err = connect(); err == nil {
			return nil
		}
		if i < browserConnectAttempts-1 {
			sleep(time.Duration(250*(i+1)) * time.Millisecond)
		}
	}
	kill()
	return err
}

// reset drops a browser whose DevTools connection looks broken so the next
// fetch launches a new one.
func (f *BrowserFetcher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		_ = rod.Try(func() { f.browser.MustClose() })
		f.browser = nil
	}
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

// RoutingFetcher sends browser-rendered sources to Browser and everything else
// to HTTP.
type RoutingFetcher struct {
	HTTP    Fetcher
	Browser Fetcher
}

func (r RoutingFetcher) Fetch(ctx context.Context, source config.Source) ([]byte, error) {
	if source.UsesBrowser() && r.Browser != nil {
		return r.Browser.Fetch(ctx, source)
	}
	return r.HTTP.Fetch(ctx, source)
}
