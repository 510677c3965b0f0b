package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"proxyscout/internal/config"
	"proxyscout/internal/support"
)

const (
	maxRedirects        = 10
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBodyBytes = 16 << 20
	acceptEncoding      = "gzip, deflate, br, zstd"
)

// Fetcher retrieves the raw payload of a source.
type Fetcher interface {
	Fetch(ctx context.Context, source config.Source) ([]byte, error)
}

type HTTPFetcher struct {
	timeout    time.Duration
	maxBody    int64
	userAgents []string
	transport  http.RoundTripper
}

type HTTPFetcherOption func(*HTTPFetcher)

func WithTransport(rt http.RoundTripper) HTTPFetcherOption {
	return func(f *HTTPFetcher) { f.transport = rt }
}

func WithMaxBodyBytes(n int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

func WithUserAgents(agents []string) HTTPFetcherOption {
	return func(f *HTTPFetcher) { f.userAgents = agents }
}

func NewHTTPFetcher(timeout time.Duration, opts ...HTTPFetcherOption) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true

	f := &HTTPFetcher{
		timeout:   timeout,
		maxBody:   defaultMaxBodyBytes,
		transport: transport,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, source config.Source) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request %s: %w", source.URL, err)
	}
	req.Header.Set("User-Agent", support.RandomUserAgent(f.userAgents))
	req.Header.Set("Accept", "text/html,application/json,text/plain;q=0.9,*/*;q=0.8")
	if source.ShouldDecompress() {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	client := &http.Client{
		Transport:     f.transport,
		CheckRedirect: redirectPolicy(source.ShouldFollowRedirects()),
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper: fetch %s: %w", source.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("scraper: fetch %s: %w: %d", source.URL, ErrStatus, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if source.ShouldDecompress() {
		decoded, err := decodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
		if err != nil {
			return nil, fmt.Errorf("scraper: decode %s: %w", source.URL, err)
		}
		defer decoded.Close()
		body = decoded
	}

	payload, err := io.ReadAll(io.LimitReader(body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("scraper: read %s: %w", source.URL, err)
	}
	if int64(len(payload)) <= f.maxBody {
		return payload, nil
	}

	payload, ok := trimToLastLine(payload[:f.maxBody])
	if !ok {
		return nil, fmt.Errorf("scraper: read %s: %w (%d bytes)", source.URL, ErrBodyTooLarge, f.maxBody)
	}
	log.Warn("Source body truncated at size limit, dropped trailing partial line",
		"source", source.Label(), "limit", f.maxBody, "kept", len(payload))
	return payload, nil
}

// trimToLastLine cuts a truncated payload after its last complete line.
func trimToLastLine(payload []byte) ([]byte, bool) {
	i := bytes.LastIndexByte(payload, '\n')
	if i < 0 {
		return nil, false
	}
	return payload[:i+1], true
}

func redirectPolicy(follow bool) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
}

// decodeBody unwraps a single content coding.
func decodeBody(encoding string, body io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		return gzip.NewReader(body)
	case "deflate":
		return zlib.NewReader(body)
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil
	case "zstd":
		decoder, err := zstd.NewReader(body)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCoding, encoding)
	}
}
