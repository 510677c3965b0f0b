package geolite

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"proxyscout/internal/domain"
)

// Locator resolves country codes from a MaxMind country database. A nil
// Locator resolves nothing.
type Locator struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
}

func Open(path string) (*Locator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: open %s: %w", path, err)
	}
	return &Locator{reader: reader}, nil
}

// Country returns the ISO country code for address, or "" when unknown.
func (l *Locator) Country(address string) string {
	if l == nil {
		return ""
	}
	ip := net.ParseIP(address)
	if ip == nil {
		return ""
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reader == nil {
		return ""
	}

	record, err := l.reader.Country(ip)
	if err != nil {
		return ""
	}
	return record.Country.IsoCode
}

// Enrich fills the country of working results that do not carry one.
func (l *Locator) Enrich(results []domain.VerificationResult) int {
	if l == nil {
		return 0
	}

	filled := 0
	for i := range results {
		if !results[i].IsWorking || results[i].Candidate.Country != "" {
			continue
		}
		if country := l.Country(results[i].Candidate.Address); country != "" {
			results[i].Candidate.Country = country
			filled++
		}
	}
	return filled
}

func (l *Locator) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reader == nil {
		return nil
	}
	err := l.reader.Close()
	l.reader = nil
	return err
}
