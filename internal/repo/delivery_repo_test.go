package repo

import (
	"context"
	"errors"
	"testing"
)

func TestRecordDelivery_DuplicateAndList(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()

	if err := RecordDelivery(ctx, db, "0xa", "2026-01-01", "s1"); err != nil {
		t.Fatalf("RecordDelivery: %v", err)
	}
	if err := RecordDelivery(ctx, db, "0xa", "2026-01-01", "s1"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := RecordDelivery(ctx, db, "0xa", "2026-01-01", "s2"); err != nil {
		t.Fatalf("RecordDelivery s2: %v", err)
	}
	// Same story on another day is a separate delivery.
	if err := RecordDelivery(ctx, db, "0xa", "2026-01-02", "s1"); err != nil {
		t.Fatalf("RecordDelivery next day: %v", err)
	}

	ids, err := DeliveredStoryIDs(ctx, db, "0xa", "2026-01-01")
	if err != nil || len(ids) != 2 {
		t.Fatalf("DeliveredStoryIDs = %v, %v", ids, err)
	}
	none, err := DeliveredStoryIDs(ctx, db, "0xb", "2026-01-01")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no deliveries for 0xb, got %v, %v", none, err)
	}
}
