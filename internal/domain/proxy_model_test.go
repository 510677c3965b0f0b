package domain

import (
	"errors"
	"testing"
)

func TestCandidateIdentityIgnoresProtocol(t *testing.T) {
	httpCandidate := NewCandidate("1.2.3.4", 8080, ProtocolHTTP)
	socksCandidate := NewCandidate(" 1.2.3.4 ", 8080, ProtocolSOCKS5)

	if httpCandidate.Identity() != socksCandidate.Identity() {
		t.Fatalf("identities differ: %s vs %s", httpCandidate.Identity(), socksCandidate.Identity())
	}
	if got := httpCandidate.Identity(); got != "1.2.3.4:8080" {
		t.Fatalf("Identity returned %s, want 1.2.3.4:8080", got)
	}
}

func TestCandidateIdentityIPv6(t *testing.T) {
	candidate := NewCandidate("2001:DB8::1", 3128, ProtocolHTTP)
	if got := candidate.Identity(); got != "[2001:db8::1]:3128" {
		t.Fatalf("Identity returned %s, want [2001:db8::1]:3128", got)
	}
}

func TestCandidateEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		want      string
		malformed bool
	}{
		{"ipv4", Candidate{Address: "10.0.0.1", Port: 80}, "10.0.0.1:80", false},
		{"hostname", Candidate{Address: "proxy.example.com", Port: 3128}, "proxy.example.com:3128", false},
		{"empty address", Candidate{Address: "", Port: 0}, "", true},
		{"port zero", Candidate{Address: "10.0.0.1", Port: 0}, "", true},
		{"port too large", Candidate{Address: "10.0.0.1", Port: 70000}, "", true},
		{"garbage address", Candidate{Address: "not an ip", Port: 80}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.candidate.Endpoint()
			if tt.malformed {
				if !errors.Is(err, ErrMalformedCandidate) {
					t.Fatalf("Endpoint error = %v, want ErrMalformedCandidate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Endpoint returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Endpoint returned %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseProtocol(t *testing.T) {
	cases := map[string]Protocol{
		"HTTP":    ProtocolHTTP,
		"https":   ProtocolHTTP,
		"socks4":  ProtocolSOCKS4,
		"Socks5":  ProtocolSOCKS5,
		"":        ProtocolUnknown,
		"vmess":   ProtocolUnknown,
		"socks5h": ProtocolSOCKS5,
	}
	for input, want := range cases {
		if got := ParseProtocol(input); got != want {
			t.Errorf("ParseProtocol(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestAnonymityRoundTrip(t *testing.T) {
	for _, level := range []Anonymity{AnonymityUnknown, AnonymityTransparent, AnonymityAnonymous, AnonymityElite} {
		if got := ParseAnonymity(level.String()); got != level {
			t.Errorf("ParseAnonymity(%q) = %v, want %v", level.String(), got, level)
		}
	}
}
