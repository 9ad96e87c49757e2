// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file manages the per-user per-day counters.
//
// Counters are only ever raised through IncrementIfBelow, a single
// conditional UPDATE, so a limit holds even when several processes share
// the database.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

// EnsureDay creates the (address, date) row with zero counters if it does
// not exist yet. It reports whether the row was created by this call.
func EnsureDay(ctx context.Context, db *gorm.DB, address, date string) (bool, error) {
	now := time.Now().UTC()
	st := &domain.UserState{Address: address, Date: date, CreatedAt: now, UpdatedAt: now}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "address"}, {Name: "date"}}, DoNothing: true}).
		Create(st)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetDay returns the counters of address for date, or ErrNotFound.
func GetDay(ctx context.Context, db *gorm.DB, address, date string) (*domain.UserState, error) {
	var st domain.UserState
	err := db.WithContext(ctx).
		Where("address = ? AND date = ?", address, date).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// IncrementIfBelow raises the action's counter by one when it is below
// limit. It returns false when the counter already reached the limit or the
// day row does not exist.
func IncrementIfBelow(ctx context.Context, db *gorm.DB, address, date string, action domain.QuotaAction, limit int) (bool, error) {
	col := action.Column()
	if col == "" {
		return false, fmt.Errorf("unknown quota action %q", action)
	}
	res := db.WithContext(ctx).Model(&domain.UserState{}).
		Where("address = ? AND date = ? AND "+col+" < ?", address, date, limit).
		Updates(map[string]any{
			col:          gorm.Expr(col + " + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimWhiskeyGrant flips the daily grant flag for (address, date). Exactly
// one caller per day observes true.
func ClaimWhiskeyGrant(ctx context.Context, db *gorm.DB, address, date string) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.UserState{}).
		Where("address = ? AND date = ? AND whiskey_granted = ?", address, date, false).
		Updates(map[string]any{
			"whiskey_granted": true,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
