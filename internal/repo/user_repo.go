// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for user profiles.
//
// All functions are context-aware and accept a *gorm.DB handle, so callers
// can pass a transaction. Balance changes are single guarded UPDATE
// statements; a zero RowsAffected means the guard did not hold.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUser loads a user by address or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, address string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("address = ?", address).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUserIfAbsent inserts a fresh profile (zero balance, empty sets) for
// address. It reports whether a row was created; an existing user is left
// untouched.
func CreateUserIfAbsent(ctx context.Context, db *gorm.DB, address string) (bool, error) {
	now := time.Now().UTC()
	u := &domain.User{
		Address:          address,
		LikedStoryIDs:    domain.StorySet{},
		ReceivedStoryIDs: domain.StorySet{},
		IsNewUser:        true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "address"}}, DoNothing: true}).
		Create(u)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func updateUser(ctx context.Context, db *gorm.DB, address string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.User{}).Where("address = ?", address).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLikedStories overwrites the liked set of a user.
func SetLikedStories(ctx context.Context, db *gorm.DB, address string, set domain.StorySet) error {
	return updateUser(ctx, db, address, map[string]any{"liked_story_ids": set})
}

// SetReceivedStories overwrites the received set of a user.
func SetReceivedStories(ctx context.Context, db *gorm.DB, address string, set domain.StorySet) error {
	return updateUser(ctx, db, address, map[string]any{"received_story_ids": set})
}

// SetIntimacy stores a new intimacy value.
func SetIntimacy(ctx context.Context, db *gorm.DB, address string, value int) error {
	return updateUser(ctx, db, address, map[string]any{"intimacy": value})
}

// ClearNewUser marks the onboarding of address as done.
func ClearNewUser(ctx context.Context, db *gorm.DB, address string) error {
	return updateUser(ctx, db, address, map[string]any{"is_new_user": false})
}

// DebitWhiskey takes one point from address if its balance is positive.
// It returns false when the balance was already zero or the user is missing.
func DebitWhiskey(ctx context.Context, db *gorm.DB, address string) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.User{}).
		Where("address = ? AND whiskey_points > 0", address).
		Updates(map[string]any{
			"whiskey_points": gorm.Expr("whiskey_points - 1"),
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// CreditWhiskey adds one point to address. It returns ErrNotFound when the
// user does not exist.
func CreditWhiskey(ctx context.Context, db *gorm.DB, address string) error {
	return updateUser(ctx, db, address, map[string]any{"whiskey_points": gorm.Expr("whiskey_points + 1")})
}

// ResetWhiskey sets the balance of address to points, whatever it was.
func ResetWhiskey(ctx context.Context, db *gorm.DB, address string, points int) error {
	return updateUser(ctx, db, address, map[string]any{"whiskey_points": points})
}
