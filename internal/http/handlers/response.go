// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the shared response helpers: the error envelope written
// by fail(), service error translation, and the success writers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/bottles-tavern/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"quota_exceeded"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"daily fetch limit of 5 reached"`
}

// fail aborts the request with a structured error.
func fail(c *gin.Context, status int, code, msg string) {
	abort(c, status, code, msg, nil)
}

// Fail is the exported variant of fail() for router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr translates a service error into the envelope.
func failErr(c *gin.Context, err error) {
	status, code, msg := classify(err)
	abort(c, status, code, msg, err)
}

// abort writes the envelope. 5xx responses are logged once with the
// request-scoped logger, carrying the cause when there is one.
func abort(c *gin.Context, status int, code, msg string, cause error) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if cause != nil {
			ev = ev.Err(cause)
		}
		ev.Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
