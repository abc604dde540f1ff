// Package httpapi wires the HTTP transport (Gin) to the support service,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, compression, authentication, idempotency, and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-livechat/internal/auth"
	"github.com/tbourn/go-livechat/internal/config"
	"github.com/tbourn/go-livechat/internal/http/handlers"
	"github.com/tbourn/go-livechat/internal/http/middleware"
	"github.com/tbourn/go-livechat/internal/repo"
	"github.com/tbourn/go-livechat/internal/search"
	"github.com/tbourn/go-livechat/internal/services"
)

// corsAllowHeaders are the request headers the widget may send cross-origin.
var corsAllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}

// NewSupportService builds the service behind the API from configuration.
// idx backs the auto-responder and may be nil.
func NewSupportService(db *gorm.DB, idx search.Index, cfg config.Config) *services.SupportService {
	svc := services.NewSupportService(db, cfg.ChannelStatus)
	svc.MaxBodyRunes = cfg.MaxBodyRunes
	svc.IdempotencyTTL = cfg.IdempotencyTTL
	if cfg.AutoReply.Enabled {
		ar := services.NewAutoResponder(idx)
		ar.Threshold = cfg.AutoReply.Threshold
		ar.SenderName = cfg.AutoReply.Sender
		ar.MaxReplyRunes = cfg.MaxBodyRunes
		svc.AutoReply = ar
	}
	return svc
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the support API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs with query redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS, security headers and gzip
//  8. Authentication (optional bearer token)
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per conversation and IP, bypass on replay)
func RegisterRoutes(r *gin.Engine, svc *services.SupportService, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2-4) Correlation, logging, recovery
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; chat messages are small)
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Web protection
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		// Poll answers change every few seconds; never let a proxy cache them.
		NoStore:           true,
		CacheablePrefixes: []string{"/swagger/"},
		EnablePolicy:      true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 8) Optional bearer authentication
	var verifier middleware.TokenVerifier
	if jwtSvc := auth.NewJWTService(cfg.JWTSecret); jwtSvc.Enabled() {
		verifier = jwtSvc
	}
	r.Use(middleware.Authenticate(verifier))

	// 9) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 128},
		func(ctx context.Context, conversationID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, svc.DB, conversationID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 10) Token-bucket rate limiter per conversation/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByConversationOrIP())

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc, svc)

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(rl.Handler())
	{
		// Widget
		api.GET("/customer/me", h.GetCustomer)
		api.GET("/channel/status", h.GetChannelStatus)
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/messages", h.PostMessage)
		api.GET("/conversations/:id/restriction", h.GetRestriction)

		// Operator
		op := api.Group("/operator", middleware.RequireOperator())
		op.POST("/conversations/:id/replies", h.PostReply)
		op.POST("/conversations/:id/close", h.CloseConversation)
		op.PUT("/conversations/:id/restriction", h.RestrictConversation)
		op.DELETE("/conversations/:id/restriction", h.LiftRestriction)
		op.GET("/conversations/:id/transcript", h.GetTranscript)
		op.PUT("/channel/status", h.SetChannelStatus)
	}
}

// corsMiddleware returns the CORS posture. Without an allowlist every origin
// is accepted (without credentials); otherwise only listed origins are echoed.
func corsMiddleware(allowedOrigins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     corsAllowHeaders,
		ExposeHeaders:    middleware.ExposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(allowedOrigins) == 0 {
		base.AllowAllOrigins = true
		// Force ACAO: * even for requests without an Origin header.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = allowedOrigins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
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
