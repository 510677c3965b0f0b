package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"proxyscout/internal/config"
	"proxyscout/internal/domain"
)

var ErrUnsupportedFormat = errors.New("support: unsupported source format")

var defaultListFields = []string{"data", "proxies", "list", "items", "results"}

// ParseSource dispatches a fetched payload to the parser for the source's
// format. An empty format is detected from the url and the payload.
func ParseSource(source config.Source, payload []byte) ([]domain.Candidate, error) {
	switch DetectFormat(source, payload) {
	case config.FormatText:
		return ParseTextToCandidates(string(payload), source), nil
	case config.FormatTable:
		return ParseTableToCandidates(payload, source)
	case config.FormatJSON:
		return ParseRecordToCandidates(payload, source)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, source.Format)
	}
}

func DetectFormat(source config.Source, payload []byte) config.Format {
	if source.Format != config.FormatAuto {
		return source.Format
	}

	url := strings.ToLower(source.URL)
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	switch {
	case strings.HasSuffix(url, ".txt"), strings.HasSuffix(url, ".list"):
		return config.FormatText
	case strings.HasSuffix(url, ".json"):
		return config.FormatJSON
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return config.FormatJSON
	}
	return config.FormatTable
}

// ParseRecordToCandidates decodes a JSON document holding a list of proxy
// records. Elements without an address or a valid port are skipped.
func ParseRecordToCandidates(payload []byte, source config.Source) ([]domain.Candidate, error) {
	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return nil, fmt.Errorf("support: decode json: %w", err)
	}

	records, err := recordList(document, source.ListField)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(records))
	for _, raw := range records {
		record, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		address := firstString(record, "ip", "host", "address")
		port, ok := recordPort(record["port"])
		if !ok || address == "" || strings.ContainsAny(address, " \t") {
			continue
		}

		protocolNames := append(recordStrings(record, "protocol", "protocols", "type"), source.Protocol)
		anonymityLabel := firstString(record, "anonymityLevel", "anonymity")

		candidate := domain.NewCandidate(address, port, resolveProtocol(protocolNames))
		candidate.Source = source.Label()
		candidate.Country = firstString(record, "country", "country_code")
		candidate.AnonymityPrior = resolveAnonymity(anonymityLabel)
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func recordList(document any, field string) ([]any, error) {
	if list, ok := document.([]any); ok && field == "" {
		return list, nil
	}

	object, ok := document.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("support: json document has no proxy list")
	}

	if field != "" {
		list, ok := object[field].([]any)
		if !ok {
			return nil, fmt.Errorf("support: json field %q is not a list", field)
		}
		return list, nil
	}

	for _, name := range defaultListFields {
		if list, ok := object[name].([]any); ok {
			return list, nil
		}
	}
	return nil, fmt.Errorf("support: json document has no proxy list")
}

func recordPort(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		port := int(v)
		if float64(port) != v || port < 1 || port > 65535 {
			return 0, false
		}
		return port, true
	case string:
		return ParsePort(v)
	default:
		return 0, false
	}
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := record[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// recordStrings collects protocol names from string or list fields.
func recordStrings(record map[string]any, keys ...string) []string {
	var out []string
	for _, key := range keys {
		switch v := record[key].(type) {
		case string:
			out = append(out, v)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
