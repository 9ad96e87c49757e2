package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct{ address, scope, key string }

func idemEngine(lookup IdempotencyLookup, seen *bool) *gin.Engine {
	r := gin.New()
	r.Use(Authenticate(nil, AuthOptions{}))
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 16}, lookup))
	h := func(c *gin.Context) {
		k, _ := GetIdempotencyKey(c)
		*seen = IsReplay(c)
		c.String(http.StatusOK, k)
	}
	r.POST("/stories/:id/whiskey", h)
	r.GET("/stories/:id", h)
	return r
}

func TestIdempotencyValidator_ScopesByAddressAndPath(t *testing.T) {
	var calls []lookupCall
	lookup := func(_ context.Context, address, scope, key string, _ time.Time) (bool, error) {
		calls = append(calls, lookupCall{address, scope, key})
		return key == "done", nil
	}
	var replay bool
	r := idemEngine(lookup, &replay)

	req := httptest.NewRequest(http.MethodPost, "/stories/s1/whiskey", nil)
	req.Header.Set(HeaderIdempotencyKey, "done")
	req.Header.Set(HeaderUserID, "0xA")
	w := serve(r, req)
	if w.Code != 200 || w.Body.String() != "done" || !replay {
		t.Fatalf("replay not detected: %d %q replay=%v", w.Code, w.Body.String(), replay)
	}
	if len(calls) != 1 || calls[0] != (lookupCall{"0xa", "/stories/s1/whiskey", "done"}) {
		t.Fatalf("lookup calls = %+v", calls)
	}

	req = httptest.NewRequest(http.MethodPost, "/stories/s1/whiskey", nil)
	req.Header.Set(HeaderIdempotencyKey, "fresh")
	req.Header.Set(HeaderUserID, "0xa")
	serve(r, req)
	if replay {
		t.Fatalf("fresh key marked as replay")
	}
}

func TestIdempotencyValidator_SkipsSafeMethodsAndAnonymous(t *testing.T) {
	called := 0
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		called++
		return true, nil
	}
	var replay bool
	r := idemEngine(lookup, &replay)

	req := httptest.NewRequest(http.MethodGet, "/stories/s1", nil)
	req.Header.Set(HeaderIdempotencyKey, "k")
	req.Header.Set(HeaderUserID, "0xa")
	if w := serve(r, req); w.Body.String() != "" {
		t.Fatalf("GET must not stash a key, got %q", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/stories/s1/whiskey", nil)
	req.Header.Set(HeaderIdempotencyKey, "k")
	if w := serve(r, req); w.Body.String() != "k" || replay {
		t.Fatalf("anonymous POST: body=%q replay=%v", w.Body.String(), replay)
	}
	if called != 0 {
		t.Fatalf("lookup called %d times", called)
	}
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	var replay bool
	r := idemEngine(nil, &replay)
	for _, key := range []string{"has space", "semi;colon", strings.Repeat("a", 17)} {
		req := httptest.NewRequest(http.MethodPost, "/stories/s1/whiskey", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		w := serve(r, req)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Fatalf("key %q: %d %s", key, w.Code, w.Body.String())
		}
	}
}

func TestIdempotencyHelpers_WrongTypes(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(ctxKeyIdemKey, 1)
	c.Set(ctxKeyIdemReplay, "yes")
	c.Set(ctxKeyRateBypass, "yes")
	if _, ok := GetIdempotencyKey(c); ok || IsReplay(c) || IsRateBypass(c) {
		t.Fatalf("wrong-typed context values must be ignored")
	}
	if IdempotencyScope(c) != "" {
		t.Fatalf("scope without request must be empty")
	}
}
