package support

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jrick/logrotate/rotator"
)

type LogSettings struct {
	Level     string
	File      string
	MaxSizeKB int64
	MaxRolls  int
}

// SetupLogger configures the default logger. When a file is configured, output
// is duplicated to a size-rotated log file; the returned closer releases it.
func SetupLogger(settings LogSettings) (io.Closer, error) {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(settings.Level)))
	if err != nil {
		level = log.InfoLevel
	}

	logger := log.Default()
	logger.SetLevel(level)
	logger.SetReportTimestamp(true)

	if settings.File == "" {
		logger.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(settings.File), 0o755); err != nil {
		return nil, fmt.Errorf("support: create log dir: %w", err)
	}

	opts := rotationFor(settings)
	r, err := rotator.New(settings.File, opts.thresholdKB, opts.compress, opts.maxRolls)
	if err != nil {
		return nil, fmt.Errorf("support: open log rotator: %w", err)
	}

	logger.SetOutput(io.MultiWriter(os.Stderr, r))
	return r, nil
}

type rotation struct {
	thresholdKB int64
	compress    bool
	maxRolls    int
}

// rotationFor fills in defaults. Rolled files are always gzipped.
func rotationFor(settings LogSettings) rotation {
	r := rotation{thresholdKB: settings.MaxSizeKB, compress: true, maxRolls: settings.MaxRolls}
	if r.thresholdKB <= 0 {
		r.thresholdKB = 10 * 1024
	}
	if r.maxRolls <= 0 {
		r.maxRolls = 3
	}
	return r
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
