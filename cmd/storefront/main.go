package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/http/handlers"
	applog "storefront/internal/log"
	"storefront/internal/mail"
	"storefront/internal/repos"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront API",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
	}
	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.AddCommand(serve)
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog and accounts into the database",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runSeed(cmd.Context()) },
	})
	return cmd
}

// setup loads config and points the logger at stdout, tee'd into LOG_FILE
// when one is configured.
func setup() (config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	var w io.Writer = os.Stdout
	closeLog := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[warn] could not open log file %s: %v\n", cfg.LogFile, err)
		} else {
			w = io.MultiWriter(os.Stdout, f)
			closeLog = func() { _ = f.Close() }
		}
	}
	applog.Init(w, cfg.LogLevel)
	return cfg, closeLog, nil
}

func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	db, err := repos.OpenDB(cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repos.EnsureRoles(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure roles: %w", err)
	}
	return db, nil
}

func runSeed(ctx context.Context) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return seed(ctx, db)
}

func seed(ctx context.Context, db *sqlx.DB) error {
	rep, err := repos.Seed(ctx, db)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	applog.L().Info().
		Int("roles", rep.Roles).Int("users", rep.Users).
		Int("categories", rep.Categories).Int("products", rep.Products).
		Msg("db.seed")
	return nil
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.SeedOnStart {
		if err := seed(ctx, db); err != nil {
			return err
		}
	}

	opts, closers, err := integrations(ctx, cfg)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		return err
	}

	deps, err := handlers.NewDeps(db, cfg, opts)
	if err != nil {
		return err
	}
	app := handlers.NewApp(cfg, deps)

	errc := make(chan error, 1)
	go func() { errc <- app.Listen(":" + cfg.Port) }()
	applog.L().Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("version", handlers.Version).Msg("server.start")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	applog.L().Info().Msg("server.shutdown")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// integrations builds the optional Redis, Kafka and SMTP backends. Each one
// is skipped when its address is not configured.
func integrations(ctx context.Context, cfg config.Config) (handlers.Options, []io.Closer, error) {
	var (
		opts    handlers.Options
		closers []io.Closer
	)
	if cfg.RedisAddr != "" {
		c, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, func(action string, err error) {
			applog.L().Warn().Err(err).Str("action", action).Msg("cache.error")
		})
		if err != nil {
			// The cache only speeds up reads; run without it.
			applog.L().Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("cache.disabled")
		} else {
			opts.Cache = c
			closers = append(closers, c)
		}
	}
	if cfg.KafkaBrokers != "" {
		var brokers []string
		for _, b := range strings.Split(cfg.KafkaBrokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		if len(brokers) == 0 {
			return opts, closers, errors.New("KAFKA_BROKERS has no usable address")
		}
		p := events.NewKafka(brokers, cfg.KafkaTopic)
		opts.Events = p
		closers = append(closers, p)
	}
	if cfg.EmailHost != "" {
		m, err := mail.New(mail.SMTPSender{
			Host:     cfg.EmailHost,
			Port:     cfg.EmailPort,
			User:     cfg.EmailUser,
			Password: cfg.EmailPassword,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			return opts, closers, err
		}
		opts.Mail = m
	}
	return opts, closers, nil
}
