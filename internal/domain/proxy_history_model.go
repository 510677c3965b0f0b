package domain

import "time"

// CycleHistory is the persisted summary of one discovery and verification
// cycle.
type CycleHistory struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	CycleID       string    `gorm:"size:36;not null;uniqueIndex"`
	Sources       int       `gorm:"not null"`
	SourcesFailed int       `gorm:"not null"`
	Candidates    int64     `gorm:"not null"`
	Working       int64     `gorm:"not null"`
	Elite         int64     `gorm:"not null"`
	StartedAt     time.Time `gorm:"not null"`
	FinishedAt    time.Time `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}
