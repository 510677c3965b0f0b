package config

import (
	"net/url"
	"strings"
)

// WebsiteBlocklist holds normalized hostnames that should never be contacted,
// neither as a source nor as a probe target.
type WebsiteBlocklist struct {
	hosts map[string]struct{}
}

// NormalizeWebsiteBlacklist trims, lowercases, and deduplicates host entries.
func NormalizeWebsiteBlacklist(entries []string) []string {
	unique := make(map[string]struct{}, len(entries))
	normalized := make([]string, 0, len(entries))

	for _, raw := range entries {
		host := normalizeHostname(raw)
		if host == "" {
			continue
		}
		if _, exists := unique[host]; exists {
			continue
		}
		unique[host] = struct{}{}
		normalized = append(normalized, host)
	}

	return normalized
}

func NewWebsiteBlocklist(entries []string) *WebsiteBlocklist {
	normalized := NormalizeWebsiteBlacklist(entries)
	set := make(map[string]struct{}, len(normalized))
	for _, host := range normalized {
		set[host] = struct{}{}
	}
	return &WebsiteBlocklist{hosts: set}
}

// IsBlocked reports whether the URL or hostname matches a blocked host or one
// of its subdomains. A nil blocklist blocks nothing.
func (b *WebsiteBlocklist) IsBlocked(rawURL string) bool {
	if b == nil || len(b.hosts) == 0 {
		return false
	}

	host := normalizeHostname(rawURL)
	if host == "" {
		return false
	}

	if _, ok := b.hosts[host]; ok {
		return true
	}
	for blocked := range b.hosts {
		if strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

// FilterBlocked returns the urls that are not blocked, preserving order.
func (b *WebsiteBlocklist) FilterBlocked(urls []string) []string {
	allowed := make([]string, 0, len(urls))
	for _, raw := range urls {
		if b.IsBlocked(raw) {
			continue
		}
		allowed = append(allowed, raw)
	}
	return allowed
}

func normalizeHostname(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Allow bare hostnames by prefixing a scheme for URL parsing.
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	return strings.Trim(host, ".")
}
