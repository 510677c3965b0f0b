package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"proxyscout/internal/domain"
)

const (
	batchThreshold    = 8191  // Use batches when exceeding this number of records
	maxParamsPerBatch = 65534 // Conservative default (PostgreSQL's limit) - 1
	minBatchSize      = 100
	workingProxyCols  = 12
)

var ErrNoDatabase = errors.New("database: nil connection")

// SaveCycle upserts the working proxies of a cycle and records its history and
// per-protocol snapshot in one transaction.
func SaveCycle(ctx context.Context, db *gorm.DB, history domain.CycleHistory, proxies []domain.WorkingProxy, snapshots []domain.ProxySnapshot) error {
	if db == nil {
		return ErrNoDatabase
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(proxies) > 0 {
			if err := upsertWorkingProxies(tx, proxies); err != nil {
				return fmt.Errorf("database: upsert working proxies: %w", err)
			}
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("database: insert cycle history: %w", err)
		}
		if len(snapshots) > 0 {
			if err := tx.Create(&snapshots).Error; err != nil {
				return fmt.Errorf("database: insert proxy snapshots: %w", err)
			}
		}
		return nil
	})
}

func upsertWorkingProxies(tx *gorm.DB, proxies []domain.WorkingProxy) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}, {Name: "port"}, {Name: "protocol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"anonymity", "latency_ms", "country", "source", "cycle_id", "last_checked_at", "updated_at",
		}),
	}).CreateInBatches(proxies, calculateBatchSize(len(proxies))).Error
}

func calculateBatchSize(count int) int {
	if count <= batchThreshold {
		return count
	}
	return clamp(maxParamsPerBatch/workingProxyCols, minBatchSize, count)
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
