package config

import (
	"time"
)

const defaultCycleInterval = time.Hour

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

// CalculateBetweenTime converts a timer into a duration of at least one second.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := CalculateMillisecondsOfCheckingPeriod(timer)

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func CalculateMillisecondsOfCheckingPeriod(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

// CycleInterval is the pause between two discovery cycles. An unset timer
// falls back to one hour.
func (cfg Config) CycleInterval() time.Duration {
	if CalculateMillisecondsOfCheckingPeriod(cfg.Scheduler.CycleTimer) == 0 {
		return defaultCycleInterval
	}
	return CalculateBetweenTime(cfg.Scheduler.CycleTimer)
}

func (cfg Config) ScraperTimeout() time.Duration {
	return time.Duration(cfg.Scraper.Timeout) * time.Millisecond
}

func (cfg Config) CheckerTimeout() time.Duration {
	return time.Duration(cfg.Checker.Timeout) * time.Millisecond
}

func (cfg Config) CheckerRetryBackoff() time.Duration {
	return time.Duration(cfg.Checker.RetryBackoff) * time.Millisecond
}
