package support

import (
	"testing"

	"proxyscout/internal/domain"
)

func TestMatchProtocolHint(t *testing.T) {
	tests := []struct {
		text string
		want domain.Protocol
	}{
		{"https://example.com/SOCKS5.txt", domain.ProtocolSOCKS5},
		{"free sock5 list", domain.ProtocolSOCKS5},
		{"socks4 proxies", domain.ProtocolSOCKS4},
		{"https://example.com/http.txt", domain.ProtocolUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := MatchProtocolHint(tt.text); got != tt.want {
				t.Fatalf("MatchProtocolHint(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestMatchAnonymityHint(t *testing.T) {
	tests := []struct {
		text string
		want domain.Anonymity
	}{
		{"Elite proxy", domain.AnonymityElite},
		{"high anonymous", domain.AnonymityElite},
		{"anonymous", domain.AnonymityAnonymous},
		{"transparent", domain.AnonymityTransparent},
		{"no", domain.AnonymityUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := MatchAnonymityHint(tt.text); got != tt.want {
				t.Fatalf("MatchAnonymityHint(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolveProtocolPriority(t *testing.T) {
	if got := resolveProtocol([]string{"", "socks4"}, "socks5 line"); got != domain.ProtocolSOCKS4 {
		t.Fatalf("explicit protocol ignored, got %s", got)
	}
	if got := resolveProtocol(nil, "plain line", "socks5 source"); got != domain.ProtocolSOCKS5 {
		t.Fatalf("later text not scanned, got %s", got)
	}
	if got := resolveProtocol(nil); got != domain.ProtocolHTTP {
		t.Fatalf("default protocol = %s, want http", got)
	}
}
