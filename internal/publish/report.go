package publish

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"proxyscout/internal/domain"
	"proxyscout/internal/jobs/ranking"
)

// Stats summarises one cycle.
type Stats struct {
	Sources          int
	SourcesSucceeded int
	SourcesFailed    int
	SourcesSkipped   int
	Parsed           int
	Candidates       int
	Working          int
	Elite            int
	ByProtocol       map[string]int
}

// Report is the ranked outcome of one cycle handed to every sink.
type Report struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    []ranking.Entry
	Groups     []ranking.Group
	Stats      Stats
}

func (r Report) Elite() []ranking.Entry {
	return ranking.Elite(r.Entries)
}

// Sink persists a report somewhere.
type Sink interface {
	Name() string
	Publish(ctx context.Context, report Report) error
}

// Multi publishes to every sink and returns all of their errors combined.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Publish(ctx context.Context, report Report) error {
	var err error
	for _, sink := range m {
		if sinkErr := sink.Publish(ctx, report); sinkErr != nil {
			err = multierr.Append(err, &SinkError{Sink: sink.Name(), Err: sinkErr})
		}
	}
	return err
}

type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string { return "publish: " + e.Sink + ": " + e.Err.Error() }
func (e *SinkError) Unwrap() error { return e.Err }

// publishedProtocols always get a list, even when empty, so stale entries from
// an earlier cycle are cleared.
var publishedProtocols = []domain.Protocol{domain.ProtocolHTTP, domain.ProtocolSOCKS4, domain.ProtocolSOCKS5}

// protocolLists returns the ranked "address:port" lines per protocol name.
func protocolLists(report Report) ([]string, map[string][]string) {
	names := make([]string, 0, len(publishedProtocols))
	lists := make(map[string][]string, len(publishedProtocols))
	for _, protocol := range publishedProtocols {
		names = append(names, protocol.String())
		lists[protocol.String()] = nil
	}

	for _, group := range report.Groups {
		name := group.Protocol.String()
		if _, ok := lists[name]; !ok {
			names = append(names, name)
		}
		lines := make([]string, 0, len(group.Entries))
		for _, entry := range group.Entries {
			lines = append(lines, entry.Identity())
		}
		lists[name] = lines
	}
	return names, lists
}

func eliteList(report Report) []string {
	elite := report.Elite()
	lines := make([]string, 0, len(elite))
	for _, entry := range elite {
		lines = append(lines, entry.Identity())
	}
	return lines
}
