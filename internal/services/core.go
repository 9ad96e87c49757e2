package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/config"
	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

// maxAddressLen matches the users.address column width.
const maxAddressLen = 128

// Core carries the dependencies shared by every tavern service. Services
// built from the same Core serialize mutations of an address through one
// KeyedMutex.
type Core struct {
	DB     *gorm.DB
	Limits config.StoryLimits
	Policy QuotaPolicy
	Locks  *KeyedMutex
	// Now is the clock used for the daily-state key; tests override it.
	Now func() time.Time
}

// NewCore builds a Core for db and the configured limits.
func NewCore(db *gorm.DB, limits config.StoryLimits) *Core {
	return &Core{
		DB:     db,
		Limits: limits,
		Policy: NewQuotaPolicy(limits),
		Locks:  &KeyedMutex{},
		Now:    time.Now,
	}
}

func (c *Core) today() string {
	if c.Now == nil {
		return domain.Day(time.Now())
	}
	return domain.Day(c.Now())
}

func (c *Core) lock(address string) func() {
	if c.Locks == nil {
		return func() {}
	}
	return c.Locks.Lock(address)
}

// ensureUserDay creates the profile and today's state row when missing.
// The first call of a day also resets the balance to the daily grant.
func (c *Core) ensureUserDay(ctx context.Context, tx *gorm.DB, address, date string) error {
	if _, err := repo.CreateUserIfAbsent(ctx, tx, address); err != nil {
		return err
	}
	if _, err := repo.EnsureDay(ctx, tx, address, date); err != nil {
		return err
	}
	granted, err := repo.ClaimWhiskeyGrant(ctx, tx, address, date)
	if err != nil {
		return err
	}
	if granted {
		return repo.ResetWhiskey(ctx, tx, address, c.Limits.InitialWhiskey)
	}
	return nil
}

// normalizeAddress trims and lowercases a wallet address.
func normalizeAddress(address string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(address))
	if a == "" {
		return "", invalid("address", "must not be empty")
	}
	if len(a) > maxAddressLen {
		return "", invalid("address", "longer than %d characters", maxAddressLen)
	}
	return a, nil
}

// normalizeText applies Unicode NFC and trims surrounding whitespace.
func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// clipRunes truncates s to max runes; max <= 0 disables clipping.
func clipRunes(s string, max int) string {
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

// notFound maps repo.ErrNotFound to the given service sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return sentinel
	}
	return err
}
