package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"proxyscout/internal/config"
)

type namedFetcher string

func (f namedFetcher) Fetch(context.Context, config.Source) ([]byte, error) {
	return []byte(f), nil
}

func TestRoutingFetcherChoosesByRenderMode(t *testing.T) {
	tests := []struct {
		name    string
		router  RoutingFetcher
		source  config.Source
		fetched string
	}{
		{"default render uses http", RoutingFetcher{HTTP: namedFetcher("http"), Browser: namedFetcher("browser")}, config.Source{URL: "https://example.com"}, "http"},
		{"browser render uses browser", RoutingFetcher{HTTP: namedFetcher("http"), Browser: namedFetcher("browser")}, config.Source{URL: "https://example.com", Render: "Browser"}, "browser"},
		{"browser render without browser falls back", RoutingFetcher{HTTP: namedFetcher("http")}, config.Source{URL: "https://example.com", Render: config.RenderBrowser}, "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := tt.router.Fetch(context.Background(), tt.source)
			if err != nil {
				t.Fatalf("Fetch returned error: %v", err)
			}
			if string(body) != tt.fetched {
				t.Fatalf("fetched from %q, want %q", body, tt.fetched)
			}
		})
	}
}

func TestBrowserFetcherCloseWithoutLaunch(t *testing.T) {
	f := NewBrowserFetcher(0)
	if err := f.Close(); err != nil {
		t.Fatalf("Close on an unused fetcher returned error: %v", err)
	}
}

func TestConnectOrKill(t *testing.T) {
	errDevTools := errors.New("devtools not ready")

	tests := []struct {
		name       string
		failures   int
		wantErr    bool
		wantKilled bool
		wantCalls  int
	}{
		{"first attempt", 0, false, false, 1},
		{"after retries", 3, false, false, 4},
		{"never connects", browserConnectAttempts, true, true, browserConnectAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, killed := 0, 0
			connect := func() error {
				calls++
				if calls <= tt.failures {
					return errDevTools
				}
				return nil
			}

			err := connectOrKill(connect, func() { killed++ }, func(time.Duration) {})
			if (err != nil) != tt.wantErr {
				t.Fatalf("connectOrKill error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errDevTools) {
				t.Fatalf("expected last connect error, got %v", err)
			}
			if (killed == 1) != tt.wantKilled || killed > 1 {
				t.Fatalf("kill called %d times, want killed=%v", killed, tt.wantKilled)
			}
			if calls != tt.wantCalls {
				t.Fatalf("connect called %d times, want %d", calls, tt.wantCalls)
			}
		})
	}
}
