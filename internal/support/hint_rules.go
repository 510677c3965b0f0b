package support

import (
	"strings"

	"proxyscout/internal/domain"
)

// Hint rules are heuristics applied to scraped text. The values they produce
// are priors only; the checker's verified result always replaces them.
// Rules are evaluated in order and the first match wins.

type protocolRule struct {
	pattern  string
	protocol domain.Protocol
}

type anonymityRule struct {
	pattern   string
	anonymity domain.Anonymity
}

var protocolRules = []protocolRule{
	{"socks5", domain.ProtocolSOCKS5},
	{"sock5", domain.ProtocolSOCKS5},
	{"socks4", domain.ProtocolSOCKS4},
	{"sock4", domain.ProtocolSOCKS4},
}

// "high anonymous" must precede "anonymous".
var anonymityRules = []anonymityRule{
	{"elite", domain.AnonymityElite},
	{"high anonymous", domain.AnonymityElite},
	{"high anonymity", domain.AnonymityElite},
	{"anonymous", domain.AnonymityAnonymous},
	{"transparent", domain.AnonymityTransparent},
}

// MatchProtocolHint returns the first protocol rule matching text, or
// ProtocolUnknown.
func MatchProtocolHint(text string) domain.Protocol {
	lowered := strings.ToLower(text)
	for _, rule := range protocolRules {
		if strings.Contains(lowered, rule.pattern) {
			return rule.protocol
		}
	}
	return domain.ProtocolUnknown
}

func MatchAnonymityHint(text string) domain.Anonymity {
	lowered := strings.ToLower(text)
	for _, rule := range anonymityRules {
		if strings.Contains(lowered, rule.pattern) {
			return rule.anonymity
		}
	}
	return domain.AnonymityUnknown
}

// resolveProtocol walks the hint sources in priority order: explicit protocol
// names (a line scheme, a declared source protocol), then each text scanned
// against the rule table, then HTTP.
func resolveProtocol(explicit []string, texts ...string) domain.Protocol {
	for _, name := range explicit {
		if protocol := domain.ParseProtocol(name); protocol != domain.ProtocolUnknown {
			return protocol
		}
	}
	for _, text := range texts {
		if protocol := MatchProtocolHint(text); protocol != domain.ProtocolUnknown {
			return protocol
		}
	}
	return domain.ProtocolHTTP
}

func resolveAnonymity(texts ...string) domain.Anonymity {
	for _, text := range texts {
		if anonymity := MatchAnonymityHint(text); anonymity != domain.AnonymityUnknown {
			return anonymity
		}
	}
	return domain.AnonymityUnknown
}
