package publish

import (
	"context"

	"gorm.io/gorm"

	"proxyscout/internal/database"
	"proxyscout/internal/domain"
)

// DatabaseSink upserts the working proxies and stores the cycle history.
type DatabaseSink struct {
	db *gorm.DB
}

func NewDatabaseSink(db *gorm.DB) *DatabaseSink {
	return &DatabaseSink{db: db}
}

func (s *DatabaseSink) Name() string { return "database" }

func (s *DatabaseSink) Publish(ctx context.Context, report Report) error {
	proxies := make([]domain.WorkingProxy, 0, len(report.Entries))
	for _, entry := range report.Entries {
		proxies = append(proxies, domain.WorkingProxy{
			Address:       entry.Address,
			Port:          entry.Port,
			Protocol:      entry.Protocol.String(),
			Anonymity:     entry.Anonymity.String(),
			LatencyMs:     entry.LatencyMs,
			Country:       entry.Country,
			Source:        entry.Source,
			CycleID:       report.CycleID,
			LastCheckedAt: report.FinishedAt,
		})
	}

	snapshots := make([]domain.ProxySnapshot, 0, len(report.Groups))
	for _, group := range report.Groups {
		snapshots = append(snapshots, domain.ProxySnapshot{
			CycleID:  report.CycleID,
			Protocol: group.Protocol.String(),
			Count:    int64(len(group.Entries)),
		})
	}

	history := domain.CycleHistory{
		CycleID:       report.CycleID,
		Sources:       report.Stats.Sources,
		SourcesFailed: report.Stats.SourcesFailed,
		Candidates:    int64(report.Stats.Candidates),
		Working:       int64(len(report.Entries)),
		Elite:         int64(len(report.Elite())),
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
	}

	return database.SaveCycle(ctx, s.db, history, proxies, snapshots)
}
