package domain

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedCandidate marks a candidate whose address/port can never form a
// connectable relay endpoint.
var ErrMalformedCandidate = errors.New("malformed candidate")

var hostnameRegex = regexp.MustCompile(`^(?i)[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)*$`)

type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	ProtocolHTTP
	ProtocolSOCKS4
	ProtocolSOCKS5
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP:
		return "http"
	case ProtocolSOCKS4:
		return "socks4"
	case ProtocolSOCKS5:
		return "socks5"
	default:
		return "unknown"
	}
}

// ParseProtocol maps a protocol name onto a Protocol. "https" proxies speak
// plain HTTP CONNECT, so they map onto ProtocolHTTP.
func ParseProtocol(name string) Protocol {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "http", "https":
		return ProtocolHTTP
	case "socks4", "socks4a":
		return ProtocolSOCKS4
	case "socks5", "socks5h":
		return ProtocolSOCKS5
	default:
		return ProtocolUnknown
	}
}

// Candidate is a discovered relay endpoint that has not been verified yet.
// Identity is the (address, port) pair only.
type Candidate struct {
	Address  string
	Port     int
	Protocol Protocol

	Source         string
	Country        string
	AnonymityPrior Anonymity
}

func NewCandidate(address string, port int, protocol Protocol) Candidate {
	return Candidate{
		Address:  normalizeAddress(address),
		Port:     port,
		Protocol: protocol,
	}
}

func (c Candidate) Identity() string {
	return net.JoinHostPort(normalizeAddress(c.Address), strconv.Itoa(c.Port))
}

// Endpoint returns the dialable host:port of the candidate, or an error
// wrapping ErrMalformedCandidate.
func (c Candidate) Endpoint() (string, error) {
	address := normalizeAddress(c.Address)
	if address == "" {
		return "", fmt.Errorf("%w: empty address", ErrMalformedCandidate)
	}
	if c.Port < 1 || c.Port > 65535 {
		return "", fmt.Errorf("%w: port %d out of range", ErrMalformedCandidate, c.Port)
	}
	if net.ParseIP(address) == nil && !hostnameRegex.MatchString(address) {
		return "", fmt.Errorf("%w: invalid address %q", ErrMalformedCandidate, c.Address)
	}
	return net.JoinHostPort(address, strconv.Itoa(c.Port)), nil
}

func (c Candidate) String() string {
	return c.Protocol.String() + "://" + c.Identity()
}

func normalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.TrimPrefix(address, "[")
	address = strings.TrimSuffix(address, "]")
	return strings.ToLower(address)
}
