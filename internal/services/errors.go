// Package services defines the business logic of the tavern: user profiles
// and daily state, story publishing and distribution, whiskey transfers and
// replies. This file centralizes service-level error values so that they can
// be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/bottles-tavern/internal/domain"
)

// Lookup errors.
var (
	// ErrUserNotFound indicates that no profile exists for the address.
	ErrUserNotFound = errors.New("user not found")

	// ErrStoryNotFound indicates that the story does not exist or was deleted.
	ErrStoryNotFound = errors.New("story not found")

	// ErrReplyNotFound indicates that the reply does not exist or is not
	// addressed to the caller.
	ErrReplyNotFound = errors.New("reply not found")
)

// State errors. None of them is accompanied by a state change.
var (
	// ErrInsufficientPoints is returned when the sender has no whiskey left.
	ErrInsufficientPoints = errors.New("insufficient whiskey points")

	ErrAlreadyLiked    = errors.New("story already liked")
	ErrNotLiked        = errors.New("story not liked")
	ErrAlreadyReceived = errors.New("story already received")
	ErrNotReceived     = errors.New("story not received")

	// ErrNotStoryAuthor is returned when a caller changes a story they did
	// not write.
	ErrNotStoryAuthor = errors.New("not the author of this story")

	// ErrStoryPoolEmpty is returned when there is no story to draw from.
	ErrStoryPoolEmpty = errors.New("story pool is empty")

	// ErrStoryPoolExhausted is returned when every draw in a row of
	// FetchAttempts was rejected, which means the caller has liked or
	// already received everything that is left.
	ErrStoryPoolExhausted = errors.New("no eligible stories left")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// QuotaExceededError reports that a daily limit was reached.
type QuotaExceededError struct {
	Action domain.QuotaAction
	Limit  int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily %s limit of %d reached", e.Action, e.Limit)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsQuotaExceeded reports whether err is (or wraps) a *QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
