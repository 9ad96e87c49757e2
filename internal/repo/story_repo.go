// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for stories.
//
// Functions:
//
//   - CreateStory / GetStory / DeleteStory
//   - RandomStory: uniform draw over the non-deleted pool
//   - CountStoriesByAuthor / ListStoriesByAuthorPage
//   - ListStoriesByIDs / ListPaymentPending
//   - IncrementStoryWhiskey / SetStoryContract / GetStoryByContract
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

// CreateStory inserts a story with a fresh UUID and UTC timestamps.
func CreateStory(ctx context.Context, db *gorm.DB, author, title, content string, paymentState int) (*domain.Story, error) {
	now := time.Now().UTC()
	s := &domain.Story{
		ID:            uuid.NewString(),
		AuthorAddress: author,
		Title:         title,
		Content:       content,
		PaymentState:  paymentState,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetStory fetches a story by id or returns ErrNotFound.
func GetStory(ctx context.Context, db *gorm.DB, id string) (*domain.Story, error) {
	var s domain.Story
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// RandomStory draws one story uniformly at random. It returns ErrNotFound
// when the pool is empty.
func RandomStory(ctx context.Context, db *gorm.DB) (*domain.Story, error) {
	var s domain.Story
	err := db.WithContext(ctx).
		Order("RANDOM()").
		Limit(1).
		Take(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountStories returns the number of stories in the pool.
func CountStories(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Story{}).Count(&n).Error
	return n, err
}

// ListStoriesByIDs returns the stories whose id is in ids, in the order of
// ids. Unknown or deleted ids are skipped.
func ListStoriesByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Story, error) {
	if len(ids) == 0 {
		return []domain.Story{}, nil
	}
	var rows []domain.Story
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Story, len(rows))
	for _, s := range rows {
		byID[s.ID] = s
	}
	out := make([]domain.Story, 0, len(rows))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListPaymentPending returns the pay-to-earn stories awaiting settlement.
func ListPaymentPending(ctx context.Context, db *gorm.DB) ([]domain.Story, error) {
	var out []domain.Story
	err := db.WithContext(ctx).
		Where("payment_state = ?", domain.PaymentPending).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// IncrementStoryWhiskey adds one whiskey point to the story.
func IncrementStoryWhiskey(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Model(&domain.Story{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"whiskey_points": gorm.Expr("whiskey_points + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStoryContract binds an on-chain contract address to a story.
func SetStoryContract(ctx context.Context, db *gorm.DB, id, contract string) error {
	res := db.WithContext(ctx).Model(&domain.Story{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"contract_address": contract,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStoryByContract finds the story bound to contract.
func GetStoryByContract(ctx context.Context, db *gorm.DB, contract string) (*domain.Story, error) {
	var s domain.Story
	if err := db.WithContext(ctx).Where("contract_address = ?", contract).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteStory soft-deletes a story owned by author. It returns ErrNotFound
// when no such story exists for that author.
func DeleteStory(ctx context.Context, db *gorm.DB, id, author string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND author_address = ?", id, author).
		Delete(&domain.Story{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountStoriesByAuthor returns how many stories author has published.
func CountStoriesByAuthor(ctx context.Context, db *gorm.DB, author string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Story{}).Where("author_address = ?", author).Count(&n).Error
	return n, err
}

// ListStoriesByAuthorPage returns a page of author's stories, newest first.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListStoriesByAuthorPage(ctx context.Context, db *gorm.DB, author string, offset, limit int) ([]domain.Story, error) {
	var out []domain.Story
	err := db.WithContext(ctx).
		Where("author_address = ?", author).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
