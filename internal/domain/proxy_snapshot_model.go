package domain

import "time"

// ProxySnapshot records how many working proxies of one protocol a cycle found.
type ProxySnapshot struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CycleID   string    `gorm:"size:36;not null;index:idx_proxy_snapshot_cycle_protocol,priority:1"`
	Protocol  string    `gorm:"size:16;not null;index:idx_proxy_snapshot_cycle_protocol,priority:2"`
	Count     int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
