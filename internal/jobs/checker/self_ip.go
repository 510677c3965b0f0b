package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"proxyscout/internal/support"
)

// SelfIPResolver looks up the public address of this host without any relay.
// The first lookup is shared by concurrent callers and its result is kept for
// the lifetime of the resolver.
type SelfIPResolver struct {
	lookupURL string
	client    *http.Client

	group singleflight.Group

	mu       sync.Mutex
	ip       string
	resolved bool
}

func NewSelfIPResolver(lookupURL string, timeout time.Duration) *SelfIPResolver {
	return &SelfIPResolver{
		lookupURL: lookupURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// Resolve returns the public IP, or "" when it cannot be determined.
func (r *SelfIPResolver) Resolve(ctx context.Context) string {
	if r == nil || r.lookupURL == "" {
		return ""
	}

	r.mu.Lock()
	if r.resolved {
		ip := r.ip
		r.mu.Unlock()
		return ip
	}
	r.mu.Unlock()

	value, _, _ := r.group.Do("self-ip", func() (any, error) {
		r.mu.Lock()
		if r.resolved {
			ip := r.ip
			r.mu.Unlock()
			return ip, nil
		}
		r.mu.Unlock()

		ip, err := r.lookup(ctx)
		if err != nil {
			log.Warn("Self IP lookup failed, transparent detection limited to markers", "url", r.lookupURL, "error", err)
		}

		r.mu.Lock()
		r.ip = ip
		r.resolved = true
		r.mu.Unlock()
		return ip, nil
	})
	return value.(string)
}

func (r *SelfIPResolver) lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.lookupURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLength))
	if err != nil {
		return "", err
	}

	ip := support.FindIP(string(body))
	if ip == "" {
		return "", fmt.Errorf("no address in response %q", strings.TrimSpace(string(body)))
	}
	return ip, nil
}
