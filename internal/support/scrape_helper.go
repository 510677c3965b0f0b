package support

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"proxyscout/internal/config"
	"proxyscout/internal/domain"
)

// tableRowSelectors are the known proxy table shapes, most specific first.
// The first selector that matches any row is the only one used.
var tableRowSelectors = []string{
	`table[class="table table-striped table-bordered"] tr`,
	`table[class*="proxy-list"] tr`,
	`table[class*="proxies"] tr`,
	`table#proxylisttable tr`,
	`table tr.odd`,
}

const (
	tableAddressColumn   = 0
	tablePortColumn      = 1
	tableCountryColumn   = 2
	tableAnonymityColumn = 4
)

// ParseTableToCandidates extracts one candidate per data row of the first
// recognised proxy table. Rows with fewer than two cells, header rows and rows
// without a numeric port are skipped.
func ParseTableToCandidates(html []byte, source config.Source) ([]domain.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("support: parse html: %w", err)
	}

	var rows *goquery.Selection
	for _, selector := range tableRowSelectors {
		if found := doc.Find(selector); found.Length() > 0 {
			rows = found
			break
		}
	}
	if rows == nil {
		return nil, nil
	}

	candidates := make([]domain.Candidate, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		if row.Find("th").Length() > 0 {
			return
		}

		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		address := strings.TrimSpace(FindIP(cellText(cells, tableAddressColumn)))
		if address == "" {
			address = strings.TrimSpace(cellText(cells, tableAddressColumn))
		}
		port, ok := ParsePort(cellText(cells, tablePortColumn))
		if !ok || address == "" || strings.ContainsAny(address, " \t") {
			return
		}

		anonymityLabel := ""
		if cells.Length() > tableAnonymityColumn {
			anonymityLabel = strings.ToLower(cellText(cells, tableAnonymityColumn))
		}

		candidate := domain.NewCandidate(address, port, resolveProtocol([]string{source.Protocol}, anonymityLabel, source.Identifier()))
		candidate.Source = source.Label()
		candidate.AnonymityPrior = resolveAnonymity(anonymityLabel, source.Identifier())
		if cells.Length() > tableCountryColumn {
			candidate.Country = cellText(cells, tableCountryColumn)
		}
		candidates = append(candidates, candidate)
	})

	return candidates, nil
}

func cellText(cells *goquery.Selection, index int) string {
	return strings.TrimSpace(cells.Eq(index).Text())
}

// IsValidURL reports whether raw is an absolute http or https url.
func IsValidURL(raw string) bool {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
