package domain

import "time"

// WorkingProxy is the latest verified state of a relay. Rows are keyed by
// address, port and protocol and refreshed by every cycle that finds them
// working.
type WorkingProxy struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Address   string `gorm:"size:255;not null;uniqueIndex:idx_working_proxy_endpoint,priority:1"`
	Port      int    `gorm:"not null;uniqueIndex:idx_working_proxy_endpoint,priority:2"`
	Protocol  string `gorm:"size:16;not null;uniqueIndex:idx_working_proxy_endpoint,priority:3"`
	Anonymity string `gorm:"size:16;not null;index"`
	LatencyMs int64  `gorm:"not null"`
	Country   string `gorm:"size:8"`
	Source    string `gorm:"size:512"`

	CycleID       string    `gorm:"size:36;index"`
	LastCheckedAt time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}
