package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:jobs_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPurgeExpired_RemovesOnlyStaleRecords(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		rec := domain.Idempotency{
			ID: uuid.NewString(), Address: "0xa", Scope: "/stories", Key: fmt.Sprintf("k%d", i),
			ResourceID: "s", Status: 201, ExpiresAt: exp,
		}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	s := NewScheduler(db)
	s.now = func() time.Time { return now }
	before := testutil.ToFloat64(purgedRecords)

	n, err := s.PurgeExpired(ctx)
	if err != nil || n != 2 {
		t.Fatalf("PurgeExpired = %d, %v; want 2", n, err)
	}
	if got := testutil.ToFloat64(purgedRecords) - before; got != 2 {
		t.Fatalf("counter moved by %v", got)
	}
	if _, err := repo.GetIdempotency(ctx, db, "0xa", "/stories", "k2", now); err != nil {
		t.Fatalf("live record purged: %v", err)
	}
}

func TestPurgeExpired_ErrorWithoutTable(t *testing.T) {
	dsn := fmt.Sprintf("file:jobs_empty_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := NewScheduler(db).PurgeExpired(context.Background()); err == nil {
		t.Fatal("expected error on missing table")
	}
}

func TestSchedulePurge_SpecValidation(t *testing.T) {
	s := NewScheduler(newTestDB(t))
	if err := s.SchedulePurge("not a schedule"); err == nil {
		t.Fatal("expected error for bad schedule")
	}
	if err := s.SchedulePurge("@every 1h"); err != nil {
		t.Fatalf("SchedulePurge: %v", err)
	}
	if s.Entries() != 1 {
		t.Fatalf("entries = %d", s.Entries())
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
