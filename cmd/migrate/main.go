// Command migrate manages the schema of the quiz attempt archive.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/logger"
)

// migrator is the part of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
}

var errUsage = errors.New("usage")

func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Directory holding the quiz_attempts migrations")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	cfg := config.Load()
	log := logger.SetupWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Failed to open attempt archive migrations")
	}
	defer m.Close()

	if err := run(m, flag.Args(), log); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("Migration failed")
	}
}

// run executes one command. down rolls back a single step unless told how
// many, so the archive is never dropped by accident.
func run(m migrator, args []string, log zerolog.Logger) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("%w: down takes a positive step count", errUsage)
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("Attempt archive has no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Attempt archive schema")
		return nil
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("%w: force needs a version", errUsage)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: invalid version %q", errUsage, args[1])
		}
		if err := m.Force(v); err != nil {
			return err
		}
	default:
		return errUsage
	}

	log.Info().Str("command", args[0]).Msg("Attempt archive migrated")
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: migrate [-path dir] <command>")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  up             apply all pending quiz_attempts migrations")
	fmt.Fprintln(w, "  down [n]       roll back n steps (default 1)")
	fmt.Fprintln(w, "  version        print the applied version")
	fmt.Fprintln(w, "  force <v>      mark version v as clean after a failed run")
}
