package scraper

import "errors"

var (
	// ErrStatus is returned when a source answers with a non-2xx status.
	ErrStatus            = errors.New("unexpected status")
	ErrBlocked           = errors.New("website is blocked")
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
	ErrUnsupportedCoding = errors.New("unsupported content encoding")
	ErrBodyTooLarge      = errors.New("body exceeds size limit")
)

func isSkip(err error) bool {
	return errors.Is(err, ErrBlocked) || errors.Is(err, ErrRobotsDisallowed)
}
