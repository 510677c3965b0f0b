package checker

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"golang.org/x/net/proxy"
	"h12.io/socks"

	"proxyscout/internal/domain"
	"proxyscout/internal/support"
)

const maxResponseBodyLength = 4096

// ProbeResponse is what a probe target answered through the relay.
type ProbeResponse struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// Prober sends one request to target through candidate.
type Prober interface {
	Probe(ctx context.Context, candidate domain.Candidate, target string) (ProbeResponse, error)
}

// RelayProber dials the candidate with the protocol it was discovered with.
type RelayProber struct {
	timeout    time.Duration
	userAgents []string
}

func NewRelayProber(timeout time.Duration, userAgents []string) *RelayProber {
	return &RelayProber{timeout: timeout, userAgents: userAgents}
}

func (p *RelayProber) Probe(ctx context.Context, candidate domain.Candidate, target string) (ProbeResponse, error) {
	endpoint, err := candidate.Endpoint()
	if err != nil {
		return ProbeResponse{}, err
	}

	transport, err := newRelayTransport(candidate.Protocol, endpoint, p.timeout)
	if err != nil {
		return ProbeResponse{}, err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   p.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ProbeResponse{}, err
	}
	req.Header.Set("Connection", "close")
	req.Header.Set("User-Agent", support.RandomUserAgent(p.userAgents))

	resp, err := client.Do(req)
	if err != nil {
		return ProbeResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLength*utf8.UTFMax))
	if err != nil {
		return ProbeResponse{}, fmt.Errorf("read probe body: %w", err)
	}

	return ProbeResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       truncateRunes(string(body), maxResponseBodyLength),
	}, nil
}

// newRelayTransport builds a single-use transport that routes every request
// through the relay at endpoint.
func newRelayTransport(protocol domain.Protocol, endpoint string, timeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: timeout}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		DisableKeepAlives:     true,
		MaxIdleConns:          0,
		IdleConnTimeout:       0,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: time.Second,
	}

	switch protocol {
	case domain.ProtocolSOCKS5:
		socksDialer, err := proxy.SOCKS5("tcp", endpoint, nil, dialer)
		if err != nil {
			return nil, err
		}
		if contextDialer, ok := socksDialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return socksDialer.Dial(network, addr)
			}
		}

	case domain.ProtocolSOCKS4:
		dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=%s", endpoint, timeout))
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dial(network, addr)
		}

	default:
		transport.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: endpoint})
	}

	return transport, nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
