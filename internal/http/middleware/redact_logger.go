// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file writes the access log. Credentials are never logged:
// Authorization, Cookie and any configured header are replaced wholesale,
// wallet addresses are shortened to their first and last four hex digits,
// and long hex blobs (signatures) are dropped.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	sigRE  = regexp.MustCompile(`(?i)\b0x[0-9a-f]{96,}\b`)
	addrRE = regexp.MustCompile(`(?i)\b0x[0-9a-f]{32,95}\b`)
	fullRE = regexp.MustCompile(`(?i)^0x[0-9a-f]{32,95}$`)
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders lists extra header names to replace with "[REDACTED]".
	MaskHeaders []string
}

// MaskAddress shortens a wallet address to 0x1234…abcd. Short or non-hex
// values are returned unchanged.
func MaskAddress(a string) string {
	if !fullRE.MatchString(a) {
		return a
	}
	return a[:6] + "…" + a[len(a)-4:]
}

func redactValue(s string) string {
	if s == "" {
		return s
	}
	s = sigRE.ReplaceAllString(s, "[REDACTED:sig]")
	return addrRE.ReplaceAllStringFunc(s, MaskAddress)
}

// RedactingLogger logs one line per request at info, warn (4xx) or error
// (5xx) level.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := mask[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redactValue(strings.Join(vv, ", "))
		}

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = path
		}
		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.
			Str("request_id", c.Writer.Header().Get(requestIDHeader)).
			Str("address", MaskAddress(Address(c))).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", redactValue(path)).
			Str("query", redactValue(c.Request.URL.RawQuery)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.ClientIP()).
			Interface("headers", headers).
			Msg("http_request")
	}
}
