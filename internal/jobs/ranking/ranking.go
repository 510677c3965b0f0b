package ranking

import (
	"sort"

	"proxyscout/internal/domain"
)

// Entry is one working proxy in the published order.
type Entry struct {
	Address   string
	Port      int
	Protocol  domain.Protocol
	LatencyMs int64
	Anonymity domain.Anonymity
	Country   string
	Source    string
}

func (e Entry) Identity() string {
	return domain.Candidate{Address: e.Address, Port: e.Port}.Identity()
}

type Group struct {
	Protocol domain.Protocol
	Entries  []Entry
}

// Rank keeps the working results and orders them by protocol name, then
// latency, then identity.
func Rank(results []domain.VerificationResult) []Entry {
	entries := make([]Entry, 0, len(results))
	for _, result := range results {
		if !result.IsWorking {
			continue
		}
		c := result.Candidate
		entries = append(entries, Entry{
			Address:   c.Address,
			Port:      c.Port,
			Protocol:  c.Protocol,
			LatencyMs: result.LatencyMs,
			Anonymity: result.Anonymity,
			Country:   c.Country,
			Source:    c.Source,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if pa, pb := a.Protocol.String(), b.Protocol.String(); pa != pb {
			return pa < pb
		}
		if a.LatencyMs != b.LatencyMs {
			return a.LatencyMs < b.LatencyMs
		}
		return a.Identity() < b.Identity()
	})

	return entries
}

// GroupByProtocol splits ranked entries by protocol, keeping their order.
func GroupByProtocol(entries []Entry) []Group {
	var groups []Group
	index := make(map[domain.Protocol]int)

	for _, entry := range entries {
		i, ok := index[entry.Protocol]
		if !ok {
			i = len(groups)
			index[entry.Protocol] = i
			groups = append(groups, Group{Protocol: entry.Protocol})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups
}

// Elite returns the elite entries in rank order.
func Elite(entries []Entry) []Entry {
	var elite []Entry
	for _, entry := range entries {
		if entry.Anonymity == domain.AnonymityElite {
			elite = append(elite, entry)
		}
	}
	return elite
}

// CountByProtocol returns the number of entries per protocol name.
func CountByProtocol(entries []Entry) map[string]int {
	counts := make(map[string]int)
	for _, entry := range entries {
		counts[entry.Protocol.String()]++
	}
	return counts
}
