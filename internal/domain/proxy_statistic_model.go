package domain

import (
	"strings"
	"time"
)

type Anonymity uint8

const (
	AnonymityUnknown Anonymity = iota
	AnonymityTransparent
	AnonymityAnonymous
	AnonymityElite
)

func (a Anonymity) String() string {
	switch a {
	case AnonymityTransparent:
		return "transparent"
	case AnonymityAnonymous:
		return "anonymous"
	case AnonymityElite:
		return "elite"
	default:
		return "unknown"
	}
}

func ParseAnonymity(name string) Anonymity {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "transparent":
		return AnonymityTransparent
	case "anonymous":
		return AnonymityAnonymous
	case "elite":
		return AnonymityElite
	default:
		return AnonymityUnknown
	}
}

// VerificationResult is the outcome of checking one candidate. It is written
// only by the check that owns the candidate.
type VerificationResult struct {
	Candidate Candidate

	IsWorking     bool
	LatencyMs     int64
	Anonymity     Anonymity
	SuccessCount  int
	FailureCount  int
	Attempts      int
	WorkingTarget string
	LastCheckedAt time.Time
}

func NewVerificationResult(candidate Candidate) VerificationResult {
	return VerificationResult{
		Candidate: candidate,
		Anonymity: AnonymityUnknown,
	}
}
