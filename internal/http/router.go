// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting, then mounts the versioned API and the
// websocket endpoint.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID -> logging -> recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-servicehub-backend/internal/auth"
	"github.com/tbourn/go-servicehub-backend/internal/config"
	"github.com/tbourn/go-servicehub-backend/internal/http/handlers"
	"github.com/tbourn/go-servicehub-backend/internal/http/middleware"
	"github.com/tbourn/go-servicehub-backend/internal/realtime"
	"github.com/tbourn/go-servicehub-backend/internal/services"
)

// Deps carries the constructed application components the router mounts.
// Construction happens in main so the gateway, its notifier, and the services
// share one wiring site.
type Deps struct {
	Lifecycle *services.LifecycleService
	Chats     *services.ChatService
	Gateway   *realtime.Gateway
	Verifier  *auth.Verifier
}

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs with credential redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and security headers
//  9. Gzip (API group only; never the websocket route)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// CORS posture: allow-all when no origins are configured.
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-User-Role"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-User-Role"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Websocket gateway. Credential verification happens after the upgrade,
	// inside the gateway, so HTTP auth middleware must not run here. No gzip
	// either: the hijacked connection bypasses the response writer.
	r.GET("/ws", deps.Gateway.HandleWS)

	sh := handlers.NewServiceHandlers(deps.Lifecycle)
	ch := handlers.NewChatHandlers(deps.Chats)

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(middleware.Auth(deps.Verifier, cfg.Auth.AllowHeaderIdentity))

	asProvider := middleware.RequireRole(auth.RoleProvider)
	asClient := middleware.RequireRole(auth.RoleClient)
	{
		// Service request lifecycle
		api.POST("/requests", asClient, sh.CreateRequest)
		api.GET("/requests/available", asProvider, sh.ListAvailable)
		api.GET("/requests/mine", asClient, sh.ListMine)
		api.GET("/requests/assigned", asProvider, sh.ListAssigned)
		api.GET("/requests/:id", sh.GetRequest)

		api.POST("/requests/:id/propose", asProvider, sh.Propose)
		api.POST("/requests/:id/accept", asProvider, sh.Accept)
		api.POST("/requests/:id/decline", asProvider, sh.Decline)
		api.POST("/requests/:id/proposal/accept", asClient, sh.AcceptProposal)
		api.POST("/requests/:id/proposal/decline", asClient, sh.DeclineProposal)
		api.POST("/requests/:id/finalize", sh.Finalize)
		api.POST("/requests/:id/cancel", asClient, sh.Cancel)
		api.POST("/requests/:id/rating", asClient, sh.Rate)

		// Chat registry
		api.POST("/chats", asClient, ch.EnsureChat)
		api.GET("/chats", ch.ListChats)
		api.GET("/chats/:id", ch.GetChat)
		api.GET("/chats/:id/messages", ch.ListMessages)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Oversized bodies error on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
