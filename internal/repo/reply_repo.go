// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for story replies.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

// CreateReply inserts an unread reply addressed to toAddress.
func CreateReply(ctx context.Context, db *gorm.DB, storyID, author, toAddress, content string) (*domain.Reply, error) {
	now := time.Now().UTC()
	r := &domain.Reply{
		ID:            uuid.NewString(),
		StoryID:       storyID,
		AuthorAddress: author,
		ToAddress:     toAddress,
		Content:       content,
		Unread:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetReply fetches a reply by id or returns ErrNotFound.
func GetReply(ctx context.Context, db *gorm.DB, id string) (*domain.Reply, error) {
	var r domain.Reply
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRepliesTo returns the replies addressed to address, newest first.
// With unreadOnly set, read replies are omitted.
func ListRepliesTo(ctx context.Context, db *gorm.DB, address string, unreadOnly bool) ([]domain.Reply, error) {
	q := db.WithContext(ctx).Where("to_address = ?", address)
	if unreadOnly {
		q = q.Where("unread = ?", true)
	}
	var out []domain.Reply
	err := q.Order("created_at desc").Find(&out).Error
	return out, err
}

// ListRepliesForStory returns the replies of a story in chronological order.
func ListRepliesForStory(ctx context.Context, db *gorm.DB, storyID string) ([]domain.Reply, error) {
	var out []domain.Reply
	err := db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// SetReplyUnread updates the unread flag of a reply addressed to toAddress.
// It returns ErrNotFound when the reply does not exist for that recipient.
func SetReplyUnread(ctx context.Context, db *gorm.DB, id, toAddress string, unread bool) error {
	res := db.WithContext(ctx).Model(&domain.Reply{}).
		Where("id = ? AND to_address = ?", id, toAddress).
		Updates(map[string]any{
			"unread":     unread,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
