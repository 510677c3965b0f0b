package ranking

import (
	"testing"

	"proxyscout/internal/domain"
)

func working(address string, port int, protocol domain.Protocol, latency int64, anonymity domain.Anonymity) domain.VerificationResult {
	result := domain.NewVerificationResult(domain.NewCandidate(address, port, protocol))
	result.IsWorking = true
	result.SuccessCount = 1
	result.LatencyMs = latency
	result.Anonymity = anonymity
	return result
}

func TestRankOrdersByProtocolThenLatency(t *testing.T) {
	results := []domain.VerificationResult{
		working("1.1.1.1", 80, domain.ProtocolSOCKS5, 120, domain.AnonymityElite),
		working("2.2.2.2", 80, domain.ProtocolHTTP, 300, domain.AnonymityAnonymous),
		working("3.3.3.3", 80, domain.ProtocolHTTP, 90, domain.AnonymityElite),
		domain.NewVerificationResult(domain.NewCandidate("4.4.4.4", 80, domain.ProtocolHTTP)),
	}

	entries := Rank(results)

	want := []string{"3.3.3.3:80", "2.2.2.2:80", "1.1.1.1:80"}
	if len(entries) != len(want) {
		t.Fatalf("Rank returned %d entries, want %d", len(entries), len(want))
	}
	for i, identity := range want {
		if got := entries[i].Identity(); got != identity {
			t.Fatalf("entry %d = %s, want %s", i, got, identity)
		}
	}
}

func TestRankBreaksLatencyTiesByIdentity(t *testing.T) {
	entries := Rank([]domain.VerificationResult{
		working("9.9.9.9", 80, domain.ProtocolHTTP, 100, domain.AnonymityElite),
		working("1.1.1.1", 80, domain.ProtocolHTTP, 100, domain.AnonymityElite),
	})

	if entries[0].Identity() != "1.1.1.1:80" {
		t.Fatalf("first entry = %s, want 1.1.1.1:80", entries[0].Identity())
	}
}

func TestGroupByProtocolKeepsOrder(t *testing.T) {
	entries := Rank([]domain.VerificationResult{
		working("1.1.1.1", 80, domain.ProtocolSOCKS4, 50, domain.AnonymityElite),
		working("2.2.2.2", 80, domain.ProtocolHTTP, 200, domain.AnonymityTransparent),
		working("3.3.3.3", 80, domain.ProtocolHTTP, 100, domain.AnonymityElite),
	})

	groups := GroupByProtocol(entries)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Protocol != domain.ProtocolHTTP || len(groups[0].Entries) != 2 {
		t.Fatalf("first group = %+v, want two http entries", groups[0])
	}
	if groups[0].Entries[0].Identity() != "3.3.3.3:80" {
		t.Fatalf("http group not in latency order: %+v", groups[0].Entries)
	}

	elite := Elite(entries)
	if len(elite) != 2 || elite[0].Identity() != "3.3.3.3:80" {
		t.Fatalf("Elite returned %+v", elite)
	}

	counts := CountByProtocol(entries)
	if counts["http"] != 2 || counts["socks4"] != 1 {
		t.Fatalf("CountByProtocol returned %v", counts)
	}
}

func TestRankMixedProtocolExample(t *testing.T) {
	entries := Rank([]domain.VerificationResult{
		working("10.0.0.1", 8080, domain.ProtocolHTTP, 500, domain.AnonymityElite),
		working("10.0.0.2", 8080, domain.ProtocolHTTP, 100, domain.AnonymityElite),
		working("10.0.0.3", 1080, domain.ProtocolSOCKS5, 50, domain.AnonymityElite),
	})

	want := []struct {
		protocol domain.Protocol
		latency  int64
	}{
		{domain.ProtocolHTTP, 100},
		{domain.ProtocolHTTP, 500},
		{domain.ProtocolSOCKS5, 50},
	}
	for i, w := range want {
		if entries[i].Protocol != w.protocol || entries[i].LatencyMs != w.latency {
			t.Fatalf("entry %d = (%s, %d), want (%s, %d)", i, entries[i].Protocol, entries[i].LatencyMs, w.protocol, w.latency)
		}
	}
}
