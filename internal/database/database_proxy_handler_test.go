package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"proxyscout/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := SetupDB(WithDialector(sqlite.Open(dsn)))
	if err != nil {
		t.Fatalf("setup sqlite database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestSaveCycleUpsertsWorkingProxies(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := []domain.WorkingProxy{
		{Address: "1.2.3.4", Port: 8080, Protocol: "http", Anonymity: "elite", LatencyMs: 300, CycleID: "c1", LastCheckedAt: now},
		{Address: "5.6.7.8", Port: 1080, Protocol: "socks5", Anonymity: "anonymous", LatencyMs: 90, CycleID: "c1", LastCheckedAt: now},
	}
	if err := SaveCycle(ctx, db, domain.CycleHistory{CycleID: "c1", StartedAt: now, FinishedAt: now, Working: 2}, first, nil); err != nil {
		t.Fatalf("SaveCycle returned error: %v", err)
	}

	later := now.Add(time.Hour)
	second := []domain.WorkingProxy{
		{Address: "1.2.3.4", Port: 8080, Protocol: "http", Anonymity: "anonymous", LatencyMs: 120, CycleID: "c2", LastCheckedAt: later},
	}
	snapshots := []domain.ProxySnapshot{{CycleID: "c2", Protocol: "http", Count: 1}}
	if err := SaveCycle(ctx, db, domain.CycleHistory{CycleID: "c2", StartedAt: later, FinishedAt: later, Working: 1}, second, snapshots); err != nil {
		t.Fatalf("SaveCycle returned error: %v", err)
	}

	var count int64
	if err := db.Model(&domain.WorkingProxy{}).Count(&count).Error; err != nil {
		t.Fatalf("count working proxies: %v", err)
	}
	if count != 2 {
		t.Fatalf("working proxy rows = %d, want 2", count)
	}

	var updated domain.WorkingProxy
	if err := db.Where("address = ? AND port = ?", "1.2.3.4", 8080).First(&updated).Error; err != nil {
		t.Fatalf("load updated proxy: %v", err)
	}
	if updated.LatencyMs != 120 || updated.Anonymity != "anonymous" || updated.CycleID != "c2" {
		t.Fatalf("proxy not refreshed: %+v", updated)
	}

	var recent []domain.WorkingProxy
	if err := db.Where("last_checked_at >= ?", later).Find(&recent).Error; err != nil {
		t.Fatalf("load recent proxies: %v", err)
	}
	if len(recent) != 1 || recent[0].Address != "1.2.3.4" {
		t.Fatalf("recent proxies = %+v, want only 1.2.3.4", recent)
	}

	var histories int64
	db.Model(&domain.CycleHistory{}).Count(&histories)
	if histories != 2 {
		t.Fatalf("cycle history rows = %d, want 2", histories)
	}
}

func TestSaveCycleRejectsDuplicateCycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	history := domain.CycleHistory{CycleID: "dup", StartedAt: time.Now(), FinishedAt: time.Now()}

	if err := SaveCycle(ctx, db, history, nil, nil); err != nil {
		t.Fatalf("first SaveCycle returned error: %v", err)
	}
	if err := SaveCycle(ctx, db, history, nil, nil); err == nil {
		t.Fatal("second SaveCycle with the same cycle id succeeded")
	}
}

func TestSaveCycleNilDB(t *testing.T) {
	if err := SaveCycle(context.Background(), nil, domain.CycleHistory{}, nil, nil); err != ErrNoDatabase {
		t.Fatalf("SaveCycle(nil) = %v, want ErrNoDatabase", err)
	}
}

func TestDialector(t *testing.T) {
	if _, err := Dialector("sqlite", "file::memory:"); err != nil {
		t.Fatalf("sqlite dialector: %v", err)
	}
	if _, err := Dialector("postgres", "host=localhost"); err != nil {
		t.Fatalf("postgres dialector: %v", err)
	}
	if _, err := Dialector("mysql", ""); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
