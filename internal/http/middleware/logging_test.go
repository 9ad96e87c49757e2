package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestID_GeneratesOrPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		v, _ := c.Get(requestIDKey)
		c.String(http.StatusOK, asString(v))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, "rid-1")
	w := serve(r, req)
	if w.Header().Get(requestIDHeader) != "rid-1" || w.Body.String() != "rid-1" {
		t.Fatalf("request id not propagated: %q %q", w.Header().Get(requestIDHeader), w.Body.String())
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	if len(w.Header().Get(requestIDHeader)) != 36 {
		t.Fatalf("expected generated UUID, got %q", w.Header().Get(requestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	w = serve(r, req)
	if len(w.Header().Get(requestIDHeader)) != 36 {
		t.Fatalf("oversized request id must be replaced")
	}
}

func TestContextLogger_CarriesRequestFields(t *testing.T) {
	buf := captureLogs(t)
	r := gin.New()
	r.Use(RequestID(), Authenticate(nil, AuthOptions{}), ContextLogger())
	r.GET("/stories/:id", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("hello")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/stories/abc", nil)
	req.Header.Set(requestIDHeader, "rid-9")
	req.Header.Set(HeaderUserID, "0x1234567890abcdef1234567890abcdef12345678")
	serve(r, req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not JSON: %v (%s)", err, buf.String())
	}
	if line["request_id"] != "rid-9" || line["route"] != "/stories/:id" || line["address"] != "0x1234…5678" {
		t.Fatalf("unexpected log fields: %v", line)
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatalf("fallback logger must not be nil")
	}
	c.Set(loggerKey, "not a logger")
	if LoggerFrom(c) == nil {
		t.Fatalf("fallback logger must not be nil")
	}
}

func TestRecovery_WritesEnvelope(t *testing.T) {
	captureLogs(t)
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "rid-p")
	w := serve(r, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["code"] != "internal_error" || body["request_id"] != "rid-p" {
		t.Fatalf("unexpected body: %v", body)
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/late", nil))
	if w.Body.String() != "partial" {
		t.Fatalf("written response must not be replaced: %q", w.Body.String())
	}
}
