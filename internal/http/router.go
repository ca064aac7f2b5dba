// Package httpapi wires the HTTP transport (Gin) to the triage services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, idempotency, and rate
// limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-triage-backend/docs"
	"github.com/tbourn/go-triage-backend/internal/analysis"
	"github.com/tbourn/go-triage-backend/internal/config"
	"github.com/tbourn/go-triage-backend/internal/domain"
	"github.com/tbourn/go-triage-backend/internal/http/handlers"
	"github.com/tbourn/go-triage-backend/internal/http/middleware"
	"github.com/tbourn/go-triage-backend/internal/inference"
	"github.com/tbourn/go-triage-backend/internal/repo"
	"github.com/tbourn/go-triage-backend/internal/services"
)

// chatRepoShim adapts the repository free functions to services.ChatRepo.
type chatRepoShim struct{}

// GetChatSession proxies repo.GetChatSession.
func (chatRepoShim) GetChatSession(ctx context.Context, db *gorm.DB, userID string) (*domain.ChatSession, error) {
	return repo.GetChatSession(ctx, db, userID)
}

// SaveChatSession proxies repo.SaveChatSession.
func (chatRepoShim) SaveChatSession(ctx context.Context, db *gorm.DB, s *domain.ChatSession) error {
	return repo.SaveChatSession(ctx, db, s)
}

// DeleteChatSession proxies repo.DeleteChatSession.
func (chatRepoShim) DeleteChatSession(ctx context.Context, db *gorm.DB, userID string) error {
	return repo.DeleteChatSession(ctx, db, userID)
}

var corsMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}

var corsHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization",
	middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
}

// RegisterRoutes attaches all middleware and HTTP endpoints to r. The model
// serves every analysis and chat turn; sessions bridges the describe and
// conclude phases.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Response compression
//  8. CORS and security headers
//
// and on the API group:
//  1. Authentication (bearer token, or X-User-ID without a secret)
//  2. Idempotency validator (before rate limiter to allow bypass on replay)
//  3. Rate limiter (per user, bypass on replay)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, model inference.Model, sessions analysis.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderUserID},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limit; photos arrive base64 encoded inside JSON
	r.Use(limitBody(cfg.MaxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compress responses (metrics scrapers negotiate their own encoding)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 8) CORS posture (allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    middleware.DefaultExposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     corsMethods,
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    middleware.DefaultExposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       true,
		EnablePolicy:  true,
		ExposeHeaders: middleware.DefaultExposeHeaders,
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

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/model/sessions
	triageSvc := services.NewTriageService(model, sessions)
	chatSvc := services.NewChatService(db, chatRepoShim{}, model)
	if cfg.ChatMaxMessageRunes > 0 {
		chatSvc.MaxMessageRunes = cfg.ChatMaxMessageRunes
	}
	h := handlers.New(triageSvc, chatSvc, db, cfg.IdempotencyTTL)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(authMiddleware(cfg.Auth))
	api.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, h.IdempotencyLookup()))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	api.Use(rl.Handler())
	{
		api.POST("/ai/describe-skin-image", h.DescribeSkinImage)
		api.POST("/ai/get-skin-conclusion", h.GetSkinConclusion)
		api.POST("/ai/analyze-skin", h.AnalyzeSkin)
		api.POST("/ai/chat", h.Chat)
		api.DELETE("/ai/chat", h.ResetChat)
	}
}

// authMiddleware verifies bearer tokens when a secret is configured and
// otherwise trusts X-User-ID.
func authMiddleware(ac config.AuthConfig) gin.HandlerFunc {
	if ac.JWTSecret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET not set; trusting X-User-ID (development only)")
		return middleware.HeaderIdentity()
	}
	return middleware.Auth(middleware.AuthOptions{
		Secret:     []byte(ac.JWTSecret),
		AllowGuest: ac.AllowGuest,
		Leeway:     30 * time.Second,
	})
}

// limitBody returns a Gin middleware that caps the request body size using
// http.MaxBytesReader. Reads past the cap fail and the JSON binder answers
// 413. A non-positive cap disables the limit.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
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
