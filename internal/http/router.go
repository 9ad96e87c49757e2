// Package httpapi wires the HTTP transport (Gin) to the tavern services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, wallet authentication, CORS, security headers, idempotency,
// and rate limiting.
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

	"github.com/tbourn/bottles-tavern/internal/auth"
	"github.com/tbourn/bottles-tavern/internal/config"
	"github.com/tbourn/bottles-tavern/internal/http/handlers"
	"github.com/tbourn/bottles-tavern/internal/http/middleware"
	"github.com/tbourn/bottles-tavern/internal/repo"
	"github.com/tbourn/bottles-tavern/internal/services"
)

// AuthBackends lets the caller supply the login challenge store and the
// wallet signature verifier. A nil store falls back to an in-memory one;
// a nil verifier is replaced by auth.InsecureVerifier only when
// AUTH_INSECURE_SKIP_VERIFY is set, otherwise login endpoints are not
// mounted.
type AuthBackends struct {
	Challenges auth.ChallengeStore
	Verifier   auth.Verifier
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the core shared by the mounted services.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with address/signature scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Authenticate: resolve the wallet before anything keyed by it
//  8. ContextLogger: request-scoped logger carrying the wallet
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per wallet/IP, bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, ab AuthBackends) *services.Core {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-User-ID"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7-8) Wallet identity and request-scoped logger
	var tokens *auth.TokenIssuer
	var parser middleware.TokenParser
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		parser = tokens
	}
	r.Use(middleware.Authenticate(parser, middleware.AuthOptions{Required: cfg.Auth.Required}))
	r.Use(middleware.ContextLogger())

	// 9) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, address, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, address, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return !rec.Pending(), nil
		},
	))

	// 10) Token-bucket rate limiter per wallet/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAddressOrIP())
	r.Use(rl.Handler())

	// 11) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
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

	// Dependency injection: services ← core ← db/limits
	core := services.NewCore(db, cfg.Story)
	deps := handlers.Deps{
		Users:          services.NewUserService(core),
		Stories:        services.NewStoryService(core),
		Whiskey:        services.NewWhiskeyService(core),
		Replies:        services.NewReplyService(core),
		DB:             db,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}

	challenges := ab.Challenges
	if challenges == nil {
		challenges = auth.NewMemoryChallengeStore(cfg.Auth.ChallengeCapacity, cfg.Auth.ChallengeTTL)
	}
	verifier := ab.Verifier
	if verifier == nil && cfg.Auth.InsecureSkipVerify {
		log.Warn().Msg("wallet signatures are NOT verified (AUTH_INSECURE_SKIP_VERIFY)")
		verifier = auth.InsecureVerifier{}
	}
	loginEnabled := tokens != nil && verifier != nil
	if loginEnabled {
		deps.Auth = auth.NewService(challenges, verifier, tokens)
	} else {
		log.Info().Msg("wallet login disabled: JWT_SECRET or signature verifier missing")
	}
	h := handlers.New(deps)

	base := groupWithPrefix(r, cfg.APIBasePath)
	if loginEnabled {
		base.POST("/auth/challenge", h.Challenge)
		base.POST("/auth/login", h.Login)
	}

	api := base.Group("", middleware.RequireAddress())
	{
		// Users
		api.GET("/users/me", h.GetMe)
		api.GET("/users/me/state", h.DailyState)
		api.GET("/users/me/whiskey", h.Balance)
		api.GET("/users/me/liked", h.LikedStories)
		api.GET("/users/me/received", h.ReceivedStories)
		api.GET("/users/me/intimacy", h.GetIntimacy)
		api.PUT("/users/me/intimacy", h.PutIntimacy)
		api.POST("/users/me/onboarded", h.CompleteOnboarding)

		// Stories
		api.POST("/stories", h.PublishStory)
		api.POST("/stories/daily", h.FetchDailyStories)
		api.POST("/stories/random", h.FetchRandomStory)
		api.GET("/stories/mine", h.MyStories)
		api.GET("/stories/pending", h.PendingStories)
		api.GET("/stories/:id", h.GetStory)
		api.DELETE("/stories/:id", h.DeleteStory)
		api.PUT("/stories/:id/contract", h.BindContract)
		api.GET("/contracts/:contract", h.StoryByContract)

		// Story sets
		api.PUT("/stories/:id/like", h.Like)
		api.DELETE("/stories/:id/like", h.Unlike)
		api.PUT("/stories/:id/received", h.MarkReceived)
		api.DELETE("/stories/:id/received", h.UnmarkReceived)

		// Whiskey
		api.POST("/stories/:id/whiskey", h.SendWhiskey)

		// Replies
		api.POST("/stories/:id/replies", h.PostReply)
		api.GET("/stories/:id/replies", h.StoryReplies)
		api.GET("/replies/inbox", h.Inbox)
		api.PUT("/replies/:id/read", h.MarkRead)
		api.DELETE("/replies/:id/read", h.MarkUnread)
	}
	return core
}

// corsMiddleware returns the CORS chain. With no allowlist every origin is
// accepted (without credentials); otherwise allowed origins are echoed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"}
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	expose := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    expose,
				AllowCredentials: false,
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
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
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    expose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body size using http.MaxBytesReader.
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
