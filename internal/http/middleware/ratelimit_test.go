package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, KeyByUserOrIP())
	r := newLimitedRouter(rl)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d within burst -> %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over burst -> %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Identity varies per request via header so each user gets its own bucket.
	r.Use(func(c *gin.Context) { c.Set(CtxUserID, c.GetHeader("X-Test-User")); c.Next() })
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, user := range []string{"a", "b", "c"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Test-User", user)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("fresh bucket for %q -> %d", user, w.Code)
		}
	}

	// Second hit on an exhausted bucket is limited.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Test-User", "a")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted bucket -> %d", w.Code)
	}
}

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFn := KeyByUserOrIP()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := keyFn(c); got[:3] != "ip:" {
		t.Fatalf("anonymous key = %q, want ip: prefix", got)
	}

	c.Set(CtxUserID, "u1")
	if got := keyFn(c); got != "user:u1" {
		t.Fatalf("authenticated key = %q", got)
	}
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.ttl = time.Millisecond

	rl.getVisitor("stale")
	time.Sleep(5 * time.Millisecond)

	// Force the sweep threshold.
	rl.mu.Lock()
	rl.lookups = 4999
	rl.mu.Unlock()
	rl.getVisitor("fresh")

	rl.mu.Lock()
	_, staleAlive := rl.visitors["stale"]
	_, freshAlive := rl.visitors["fresh"]
	rl.mu.Unlock()
	if staleAlive {
		t.Fatalf("idle visitor survived the sweep")
	}
	if !freshAlive {
		t.Fatalf("fresh visitor evicted")
	}
}

func TestNewRateLimiter_CoercesBurst(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want 1", rl.burst)
	}
}
