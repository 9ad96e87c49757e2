// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror HTTP status semantics, the
// tavern-specific ones name a business rule the request ran into.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "quota_exceeded",
//	  "message": "daily publish limit of 3 reached"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/bottles-tavern/internal/auth"
	"github.com/tbourn/bottles-tavern/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeQuotaExceeded      = "quota_exceeded"
	ErrCodeInsufficientPoints = "insufficient_points"
	ErrCodePoolEmpty          = "story_pool_empty"
	ErrCodeInvalidSignature   = "invalid_signature"
	ErrCodeNoChallenge        = "no_challenge"
)

// classify maps a service error to (status, code, message). Unknown errors
// become a 500 with a generic message; the cause is logged by fail().
func classify(err error) (int, string, string) {
	var ve *services.ValidationError
	var qe *services.QuotaExceededError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrCodeBadRequest, ve.Error()
	case errors.As(err, &qe):
		return http.StatusTooManyRequests, ErrCodeQuotaExceeded, qe.Error()
	case errors.Is(err, services.ErrInsufficientPoints):
		return http.StatusConflict, ErrCodeInsufficientPoints, err.Error()
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrStoryNotFound),
		errors.Is(err, services.ErrReplyNotFound):
		return http.StatusNotFound, ErrCodeNotFound, err.Error()
	case errors.Is(err, services.ErrAlreadyLiked),
		errors.Is(err, services.ErrNotLiked),
		errors.Is(err, services.ErrAlreadyReceived),
		errors.Is(err, services.ErrNotReceived):
		return http.StatusConflict, ErrCodeConflict, err.Error()
	case errors.Is(err, services.ErrNotStoryAuthor):
		return http.StatusForbidden, ErrCodeForbidden, err.Error()
	case errors.Is(err, services.ErrStoryPoolEmpty),
		errors.Is(err, services.ErrStoryPoolExhausted):
		return http.StatusNotFound, ErrCodePoolEmpty, err.Error()
	case errors.Is(err, auth.ErrNoChallenge):
		return http.StatusUnauthorized, ErrCodeNoChallenge, "request a new challenge"
	case errors.Is(err, auth.ErrBadSignature):
		return http.StatusUnauthorized, ErrCodeInvalidSignature, err.Error()
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal error"
}
