package router

import (
	"context"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

const metricsPath = "/api/v1/operator/system/metrics"

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
	Attempt *handler.AttemptHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the rate limiters' background cleanup.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID, middleware.OperatorHeader}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally. The metrics stream is flushed per event.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			return strings.HasPrefix(c.Request.URL.Path, metricsPath)
		},
	}))

	// Health check.
	router.GET("/health", handlers.System.Health)

	// Opening a session costs a store and a token: 10 per minute per IP.
	createLimiter := middleware.NewRateLimiter(ctx, 10, time.Minute)
	// Actions are cheap but may hit the quiz API: 120 per minute per session.
	actionLimiter := middleware.NewRateLimiter(ctx, 120, time.Minute)

	// ─── 1. Session Creation (Public, Rate Limited) ────────────────────
	router.POST("/api/v1/sessions", createLimiter.Middleware(), middleware.NoStore(), handlers.Session.Create)

	// ─── 2. Session Group (JWT + Active Token) ─────────────────────────
	sessionAPI := router.Group("/api/v1/session")
	sessionAPI.Use(
		middleware.RequireSessionJWT(authService),
		middleware.CheckActiveSession(authService),
		actionLimiter.Middleware(),
		middleware.NoStore(),
	)
	{
		sessionAPI.GET("", handlers.Session.GetState)
		sessionAPI.POST("/actions", handlers.Session.Dispatch)
		sessionAPI.GET("/tasks/:task_id", handlers.Session.GetTaskResult)
		sessionAPI.DELETE("", handlers.Session.End)
	}

	// ─── 3. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireSessionJWT(authService),
		middleware.CheckActiveSession(authService),
	)
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Operator Group (bcrypt key) ────────────────────────────────
	operatorAPI := router.Group("/api/v1/operator")
	operatorAPI.Use(middleware.RequireOperatorKey(authService), middleware.NoStore())
	{
		operatorAPI.GET("/attempts", handlers.Attempt.ListAttempts)
		operatorAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
