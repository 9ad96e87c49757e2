// Package services – UserService
//
// This file implements UserService, which owns wallet profiles and their
// daily state. Reading a profile creates it on first sight and opens the
// current day, which is also when the daily whiskey grant is applied.
// Liked and received story sets are toggled here; each toggle is a no-op
// signalled by a sentinel error when the set already has the wanted shape.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

// UserService manages profiles, daily state and story sets.
type UserService struct {
	*Core
}

// NewUserService constructs a UserService on top of core.
func NewUserService(core *Core) *UserService {
	return &UserService{Core: core}
}

// GetUser returns the profile of address, creating it and today's state
// when missing.
func (s *UserService) GetUser(ctx context.Context, address string) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "GetUser")
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.address", address))

	unlock := s.lock(address)
	defer unlock()

	var u *domain.User
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUserDay(ctx, tx, address, s.today()); err != nil {
			return err
		}
		var err error
		u, err = repo.GetUser(ctx, tx, address)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// DailyState returns today's counters of address, opening the day if needed.
func (s *UserService) DailyState(ctx context.Context, address string) (*domain.UserState, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "DailyState")
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	unlock := s.lock(address)
	defer unlock()

	date := s.today()
	var st *domain.UserState
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUserDay(ctx, tx, address, date); err != nil {
			return err
		}
		var err error
		st, err = repo.GetDay(ctx, tx, address, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// MarkLiked adds storyID to the liked set of address.
func (s *UserService) MarkLiked(ctx context.Context, address, storyID string) error {
	return s.toggle(ctx, "MarkLiked", address, storyID, likedSet, true)
}

// UnmarkLiked removes storyID from the liked set of address.
func (s *UserService) UnmarkLiked(ctx context.Context, address, storyID string) error {
	return s.toggle(ctx, "UnmarkLiked", address, storyID, likedSet, false)
}

// MarkReceived adds storyID to the received set of address.
func (s *UserService) MarkReceived(ctx context.Context, address, storyID string) error {
	return s.toggle(ctx, "MarkReceived", address, storyID, receivedSet, true)
}

// UnmarkReceived removes storyID from the received set of address.
func (s *UserService) UnmarkReceived(ctx context.Context, address, storyID string) error {
	return s.toggle(ctx, "UnmarkReceived", address, storyID, receivedSet, false)
}

type storySetKind int

const (
	likedSet storySetKind = iota
	receivedSet
)

func (s *UserService) toggle(ctx context.Context, op, address, storyID string, kind storySetKind, add bool) error {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, op, trace.WithAttributes(attribute.String("story.id", storyID)))
	defer span.End()

	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	if storyID == "" {
		return invalid("story_id", "must not be empty")
	}
	unlock := s.lock(address)
	defer unlock()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := repo.GetUser(ctx, tx, address)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if add {
			if _, err := repo.GetStory(ctx, tx, storyID); err != nil {
				return notFound(err, ErrStoryNotFound)
			}
		}

		set := u.LikedStoryIDs
		if kind == receivedSet {
			set = u.ReceivedStoryIDs
		}
		var changed bool
		if add {
			set, changed = set.With(storyID)
		} else {
			set, changed = set.Without(storyID)
		}
		if !changed {
			return toggleNoop(kind, add)
		}
		if kind == likedSet {
			return repo.SetLikedStories(ctx, tx, address, set)
		}
		return repo.SetReceivedStories(ctx, tx, address, set)
	})
}

func toggleNoop(kind storySetKind, add bool) error {
	switch {
	case kind == likedSet && add:
		return ErrAlreadyLiked
	case kind == likedSet:
		return ErrNotLiked
	case add:
		return ErrAlreadyReceived
	default:
		return ErrNotReceived
	}
}

// LikedStories lists the stories in the liked set of address, in the order
// they were liked. Deleted stories are skipped.
func (s *UserService) LikedStories(ctx context.Context, address string) ([]domain.Story, error) {
	return s.listSet(ctx, address, likedSet)
}

// ReceivedStories lists the stories in the received set of address.
func (s *UserService) ReceivedStories(ctx context.Context, address string) ([]domain.Story, error) {
	return s.listSet(ctx, address, receivedSet)
}

func (s *UserService) listSet(ctx context.Context, address string, kind storySetKind) ([]domain.Story, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	u, err := repo.GetUser(ctx, s.DB, address)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	ids := u.LikedStoryIDs
	if kind == receivedSet {
		ids = u.ReceivedStoryIDs
	}
	return repo.ListStoriesByIDs(ctx, s.DB, ids)
}

// Intimacy returns the intimacy score of address.
func (s *UserService) Intimacy(ctx context.Context, address string) (int, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return 0, err
	}
	u, err := repo.GetUser(ctx, s.DB, address)
	if err != nil {
		return 0, notFound(err, ErrUserNotFound)
	}
	return u.Intimacy, nil
}

// UpdateIntimacy stores a new intimacy score. Negative values are rejected.
func (s *UserService) UpdateIntimacy(ctx context.Context, address string, value int) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	if value < 0 {
		return invalid("intimacy", "must be >= 0")
	}
	return notFound(repo.SetIntimacy(ctx, s.DB, address, value), ErrUserNotFound)
}

// CompleteOnboarding clears the new-user flag of address.
func (s *UserService) CompleteOnboarding(ctx context.Context, address string) error {
	address, err := normalizeAddress(address)
	if err != nil {
		return err
	}
	return notFound(repo.ClearNewUser(ctx, s.DB, address), ErrUserNotFound)
}
