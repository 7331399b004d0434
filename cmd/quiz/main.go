package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/cli"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/gateway"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/preference"
	"github.com/stemsi/exstem-quiz/internal/session"
)

func main() {
	useRedis := flag.Bool("redis", false, "cache the test catalog and keep preferences in Redis")
	clientID := flag.String("client", "", "client ID for Redis-backed preferences (default: hostname)")
	plain := flag.Bool("plain", false, "disable colors and screen clearing")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	// The screen belongs to the UI, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log := logger.SetupWriter(logOut, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Quiz API ──────────────────────────────────────────────────────
	client := gateway.NewClient(cfg.APIBaseURL, cfg.APITimeout, log)

	opts := []session.Option{
		session.WithPollInterval(cfg.GradingPollInterval),
		session.WithDefaultNumQuestions(cfg.DefaultNumQuestions),
		session.WithThemeStore(preference.NewFileStore(cfg.ThemeFile)),
	}

	// ─── Optional Redis ────────────────────────────────────────────────
	if *useRedis {
		rdb, err := database.NewRedisClient(ctx, cfg, database.RoleClient, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect redis: %v\n", err)
			os.Exit(1)
		}
		defer rdb.Close()

		id := *clientID
		if id == "" {
			id, _ = os.Hostname()
		}
		opts = append(opts,
			session.WithCatalog(gateway.NewCachedCatalog(client, rdb, cfg.CatalogCacheTTL, log)),
			session.WithThemeStore(preference.NewRedisStore(rdb, id)),
		)
	}

	store := session.New(client, log, opts...)
	defer store.Close()

	// ─── Terminal ──────────────────────────────────────────────────────
	con, restore, err := cli.OpenConsole(os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open terminal: %v\n", err)
		os.Exit(1)
	}

	app := cli.NewApp(store, con, cfg.TimerTickInterval, *plain, log)
	log.Info().Str("api", cfg.APIBaseURL).Msg("Quiz client started")

	runErr := app.Run(ctx)
	restore()

	if runErr != nil && runErr != context.Canceled {
		log.Error().Err(runErr).Msg("Quiz client stopped")
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
