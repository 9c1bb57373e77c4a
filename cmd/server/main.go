// Package main runs the quill server: the admin API, the generation queue
// and the recurring schedule. Flags select one-shot maintenance commands
// instead of serving.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/quill/internal/config"
	"github.com/phrazzld/quill/internal/platform/logger"
	"github.com/phrazzld/quill/internal/platform/postgres"
	"github.com/phrazzld/quill/internal/service/auth"
)

// options are the command line flags.
type options struct {
	migrate     string
	cleanupDays int
	issueToken  string
	tokenTTL    time.Duration
}

func parseFlags(args []string, errOut io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("quill", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.migrate, "migrate", "",
		"run a migration command (up, down, status, version, reset) and exit")
	fs.IntVar(&opts.cleanupDays, "cleanup-days", 0,
		"delete finished tasks older than this many days and exit")
	fs.StringVar(&opts.issueToken, "issue-token", "",
		"print an admin token for the given subject and exit")
	fs.DurationVar(&opts.tokenTTL, "token-ttl", 30*24*time.Hour,
		"lifetime of tokens printed by -issue-token")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.cleanupDays < 0 {
		return options{}, fmt.Errorf("-cleanup-days must not be negative")
	}
	if opts.tokenTTL <= 0 {
		return options{}, fmt.Errorf("-token-ttl must be positive")
	}
	return opts, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("quill exited with error", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"provider", cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.issueToken != "" {
		return issueToken(ctx, cfg, opts.issueToken, opts.tokenTTL, os.Stdout)
	}

	db, err := setupAppDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}

	if opts.migrate != "" {
		defer func() { _ = db.Close() }()
		return postgres.Migrate(ctx, db, opts.migrate, log)
	}

	app, err := newApplication(cfg, log, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if opts.cleanupDays > 0 {
		defer app.cleanup()
		deleted, err := app.queue.Cleanup(ctx, opts.cleanupDays)
		if err != nil {
			return err
		}
		log.Info("cleanup finished", "deleted", deleted, "days", opts.cleanupDays)
		return nil
	}

	return app.Run(ctx)
}

func issueToken(ctx context.Context, cfg *config.Config, subject string, ttl time.Duration, out io.Writer) error {
	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	token, err := tokens.IssueToken(ctx, subject, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
