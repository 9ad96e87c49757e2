// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

// latest returns the row count of q and the greatest updated_at among the
// rows, or nil when there are none.
func latest(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// AuthorStoriesStats returns the number of stories written by author and
// the most recent UpdatedAt among them.
func AuthorStoriesStats(ctx context.Context, db *gorm.DB, author string) (int64, *time.Time, error) {
	return latest(db.WithContext(ctx).Model(&domain.Story{}).Where("author_address = ?", author))
}

// InboxStats returns the number of replies addressed to address and the
// most recent UpdatedAt among them. Read-state changes bump UpdatedAt.
func InboxStats(ctx context.Context, db *gorm.DB, address string) (int64, *time.Time, error) {
	return latest(db.WithContext(ctx).Model(&domain.Reply{}).Where("to_address = ?", address))
}
