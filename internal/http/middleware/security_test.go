package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newSecuredRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := newSecuredRouter(SecurityOptions{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("nosniff missing")
	}
	if h.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("frame options missing")
	}
	if h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("referrer policy missing")
	}
	if h.Get("Cache-Control") != "" {
		t.Fatalf("no-store must be opt-in")
	}
	if !strings.Contains(h.Get("Access-Control-Expose-Headers"), requestIDHeader) {
		t.Fatalf("request id not exposed: %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestSecurityHeaders_NoStore(t *testing.T) {
	r := newSecuredRouter(SecurityOptions{NoStore: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("Pragma") != "no-cache" {
		t.Fatalf("no-store headers missing")
	}
}

func TestSecurityHeaders_HSTSOnlyOnHTTPS(t *testing.T) {
	r := newSecuredRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour})

	// Plain HTTP: no HSTS even when enabled.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS emitted on plain HTTP")
	}

	// Proxied HTTPS via X-Forwarded-Proto.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)
	got := w.Header().Get("Strict-Transport-Security")
	if got != "max-age=3600; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_HSTSDefaultMaxAge(t *testing.T) {
	r := newSecuredRouter(SecurityOptions{EnableHSTS: true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	r.ServeHTTP(w, req)

	// 180 days in seconds.
	if got := w.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=15552000") {
		t.Fatalf("default max-age: %q", got)
	}
}

func TestSecurityHeaders_AppendsToExposeHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Expose-Headers", "ETag")
		c.Next()
	})
	r.Use(SecurityHeaders(SecurityOptions{}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	got := w.Header().Get("Access-Control-Expose-Headers")
	if got != "ETag, "+requestIDHeader {
		t.Fatalf("expose headers = %q", got)
	}
}

func TestIsHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(req) {
		t.Fatalf("plain request reported as HTTPS")
	}
	req.Header.Set("X-Forwarded-Proto", "https")
	if !isHTTPS(req) {
		t.Fatalf("forwarded proto not honored")
	}
}
