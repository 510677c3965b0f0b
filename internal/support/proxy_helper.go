package support

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"proxyscout/internal/config"
	"proxyscout/internal/domain"
)

const defaultSeparator = ":"

var schemePrefixRegex = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*)://`)

// ParseTextToCandidates extracts candidates from a delimited text list, one
// candidate per line. Lines that do not yield an address and a numeric port
// are skipped.
func ParseTextToCandidates(text string, source config.Source) []domain.Candidate {
	separator := source.Separator
	if separator == "" {
		separator = defaultSeparator
	}

	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	candidates := make([]domain.Candidate, 0, len(lines))

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lineHint := ""
		body := line
		if match := schemePrefixRegex.FindStringSubmatch(line); match != nil {
			lineHint = match[1]
			body = line[len(match[0]):]
		}

		fields := nonEmptyFields(body, separator)
		if len(fields) < 2 {
			continue
		}

		address := strings.TrimSpace(fields[0])
		port, ok := ParsePort(fields[1])
		if !ok || address == "" || strings.ContainsAny(address, " \t") {
			continue
		}

		candidate := domain.NewCandidate(address, port, resolveProtocol([]string{lineHint, source.Protocol}, line, source.Identifier()))
		candidate.Source = source.Label()
		candidate.AnonymityPrior = resolveAnonymity(line, source.Identifier())
		candidates = append(candidates, candidate)
	}

	return candidates
}

// ParsePort keeps the leading digits of a port field, so trailing annotation
// such as "8080 # US" or "3128(elite)" is dropped.
func ParsePort(field string) (int, bool) {
	field = strings.TrimSpace(field)
	end := 0
	for end < len(field) && unicode.IsDigit(rune(field[end])) {
		end++
	}
	if end == 0 {
		return 0, false
	}

	port, err := strconv.Atoi(field[:end])
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

func nonEmptyFields(line, separator string) []string {
	parts := strings.Split(line, separator)
	fields := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		fields = append(fields, part)
	}
	return fields
}

// FindIP identifies the first IP address (IPv4 or IPv6) in a given string.
func FindIP(input string) string {
	return ipRegex.FindString(input)
}

var ipRegex = regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b|` + // IPv4
	`\b(?:[A-Fa-f0-9]{1,4}:){7}[A-Fa-f0-9]{1,4}\b`) // IPv6

type AnonymitySettings struct {
	ProxyHeaders       []string
	TransparentMarkers []string
}

// ClassifyAnonymity grades a successful probe response. The proxy is
// transparent when our own address or a disclosure marker is visible,
// anonymous when a forwarding header was added, elite otherwise. A forwarding
// header counts when it is in the response headers or echoed in the body as
// a header line or field name, never when its name only occurs inside a value.
func ClassifyAnonymity(body string, header http.Header, selfIP string, settings AnonymitySettings) domain.Anonymity {
	if selfIP != "" && strings.Contains(body, selfIP) {
		return domain.AnonymityTransparent
	}

	loweredBody := strings.ToLower(body)
	for _, marker := range settings.TransparentMarkers {
		if marker != "" && strings.Contains(loweredBody, strings.ToLower(marker)) {
			return domain.AnonymityTransparent
		}
	}

	for _, name := range settings.ProxyHeaders {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if header.Get(name) != "" {
			return domain.AnonymityAnonymous
		}
		if headerEchoPattern(name).MatchString(body) {
			return domain.AnonymityAnonymous
		}
	}

	return domain.AnonymityElite
}

var headerEchoPatterns sync.Map

// headerEchoPattern matches name as a whole key followed by ':' or '=', in
// any case, with '-' and '_' interchangeable and an optional HTTP_ prefix.
// It matches `"X_Forwarded_For": "..."`, `Via: 1.1 squid` and
// `HTTP_VIA = ...`, but not "Latvia".
func headerEchoPattern(name string) *regexp.Regexp {
	if cached, ok := headerEchoPatterns.Load(name); ok {
		return cached.(*regexp.Regexp)
	}

	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	pattern := regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9_-])["']?(?:HTTP[-_])?` +
		strings.Join(parts, `[-_]`) + `["']?\s*[:=]`)

	actual, _ := headerEchoPatterns.LoadOrStore(name, pattern)
	return actual.(*regexp.Regexp)
}
