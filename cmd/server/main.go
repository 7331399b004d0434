package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/gateway"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/preference"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/router"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/session"
	"github.com/stemsi/exstem-quiz/internal/validator"
	"github.com/stemsi/exstem-quiz/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("api", cfg.APIBaseURL).
		Msg("Starting quiz session host")

	if cfg.OperatorKeyHash == "" {
		log.Warn().Msg("OPERATOR_KEY_HASH is empty, operator endpoints will reject every request")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewArchivePool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to attempt archive")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, database.RoleHost, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Quiz API ──────────────────────────────────────────────────────
	client := gateway.NewClient(cfg.APIBaseURL, cfg.APITimeout, log)
	catalog := gateway.NewCachedCatalog(client, rdb, cfg.CatalogCacheTTL, log)

	// ─── Initialize Repositories & Services ───────────────────────────
	attemptRepo := repository.NewAttemptRepository(pool)
	authService := service.NewAuthService(cfg, rdb)
	attemptService := service.NewAttemptService(attemptRepo, rdb, log)

	factory := func(clientID string) *session.Store {
		return session.New(client, log,
			session.WithCatalog(catalog),
			session.WithPollInterval(cfg.GradingPollInterval),
			session.WithDefaultNumQuestions(cfg.DefaultNumQuestions),
			session.WithThemeStore(preference.NewRedisStore(rdb, clientID)),
		)
	}
	hub := service.NewSessionHub(factory, attemptService, cfg.SessionIdleTimeout, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(hub, authService, log),
		WS:      handler.NewWSHandler(hub, log, cfg.AllowedOrigins),
		Attempt: handler.NewAttemptHandler(attemptService, log),
		System:  handler.NewSystemHandler(hub, attemptService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	hubCtx, hubCancel := context.WithCancel(context.Background())
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var hubWG, workerWG sync.WaitGroup

	hubWG.Add(1)
	go func() {
		defer hubWG.Done()
		hub.Run(hubCtx)
	}()

	attemptWorker := worker.NewAttemptWorker(attemptRepo, rdb, log)
	workerWG.Add(1)
	go func() {
		defer workerWG.Done()
		attemptWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Close every hosted session; their grading polls end with them.
	hubCancel()
	hubWG.Wait()

	// 3. Stop the archive worker once nothing can enqueue anymore.
	workerCancel()
	workerWG.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
