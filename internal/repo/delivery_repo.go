// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records which stories were handed out per day.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

// RecordDelivery stores that storyID was delivered to address on date.
// It returns ErrDuplicate if that delivery was already recorded.
func RecordDelivery(ctx context.Context, db *gorm.DB, address, date, storyID string) error {
	d := &domain.Delivery{Address: address, Date: date, StoryID: storyID, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeliveredStoryIDs returns the ids delivered to address on date, in
// delivery order.
func DeliveredStoryIDs(ctx context.Context, db *gorm.DB, address, date string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.Delivery{}).
		Where("address = ? AND date = ?", address, date).
		Order("created_at asc").
		Order("story_id asc").
		Pluck("story_id", &ids).Error
	return ids, err
}
