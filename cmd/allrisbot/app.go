package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ungeschneuer/srl-allris-bot/internal/config"
	"github.com/ungeschneuer/srl-allris-bot/internal/events"
	"github.com/ungeschneuer/srl-allris-bot/internal/publisher"
	"github.com/ungeschneuer/srl-allris-bot/internal/runlock"
	"github.com/ungeschneuer/srl-allris-bot/internal/scheduler"
	"github.com/ungeschneuer/srl-allris-bot/internal/service"
	"github.com/ungeschneuer/srl-allris-bot/internal/source/oparl"
	"github.com/ungeschneuer/srl-allris-bot/internal/source/rss"
	"github.com/ungeschneuer/srl-allris-bot/internal/storage/postgres"
	"github.com/ungeschneuer/srl-allris-bot/internal/storage/sqlite"
)

// app bundles everything one invocation needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *service.RunService
	close   func()
}

func buildApp(cfgPath string) (*app, error) {
	logger := setupLogger("info")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = setupLogger(cfg.LogLevel)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, history, runLog, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() { db.Close() })

	src, err := buildSource(cfg, logger)
	if err != nil {
		closeAll()
		return nil, err
	}

	mastodon := publisher.NewMastodon(publisher.Config{
		ServerURL:       cfg.Mastodon.ServerURL,
		AccessToken:     cfg.Mastodon.AccessToken,
		MaxChars:        cfg.Mastodon.MaxChars,
		Hashtags:        cfg.Mastodon.Hashtags,
		MinPostInterval: cfg.Mastodon.MinPostInterval,
		Timeout:         cfg.Mastodon.Timeout,
		MaxAttempts:     cfg.Mastodon.Retry.MaxAttempts,
		InitialBackoff:  cfg.Mastodon.Retry.InitialBackoff,
		MaxBackoff:      cfg.Mastodon.Retry.MaxBackoff,
	}, logger)
	closers = append(closers, func() { mastodon.Close() })

	var sink service.EventSink
	if cfg.RabbitMQ.Enabled {
		rmq, err := events.NewRabbitMQ(events.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		closers = append(closers, func() { rmq.Close() })
		sink = rmq
	}

	svc := service.NewRunService(src, history, runLog, mastodon, sink, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		service: svc,
		close:   closeAll,
	}, nil
}

func openStorage(cfg *config.Config, logger *slog.Logger) (*sqlx.DB, service.HistoryStore, service.RunLogStore, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.Storage.Database.DSN())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("connected to postgres", "dbname", cfg.Storage.Database.DBName)
		return db, postgres.NewHistoryStore(db), postgres.NewRunLogStore(db), nil
	default:
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		logger.Info("opened sqlite database", "path", cfg.Storage.Path)
		return db, sqlite.NewHistoryStore(db), sqlite.NewRunLogStore(db), nil
	}
}

func buildSource(cfg *config.Config, logger *slog.Logger) (service.Source, error) {
	switch cfg.Source.Type {
	case "rss":
		return rss.New(rss.Config{
			FeedURL:  cfg.Source.FeedURL,
			Lookback: cfg.Source.Lookback,
			Timeout:  cfg.Source.Timeout,
		}, logger), nil
	case "oparl":
		return oparl.New(oparl.Config{
			BaseURL:        cfg.Source.BaseURL,
			PageSize:       cfg.Source.PageSize,
			MaxPages:       cfg.Source.MaxPages,
			Lookback:       cfg.Source.Lookback,
			Timeout:        cfg.Source.Timeout,
			MaxAttempts:    cfg.Source.Retry.MaxAttempts,
			InitialBackoff: cfg.Source.Retry.InitialBackoff,
			MaxBackoff:     cfg.Source.Retry.MaxBackoff,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

func runOnce(cfgPath string) error {
	a, err := buildApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	lock, err := runlock.Acquire(a.cfg.Run.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Run.Timeout)
	defer cancel()

	stats, err := a.service.Run(ctx)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	fmt.Printf("fetched=%d new=%d published=%d failed=%d duration=%s\n",
		stats.Fetched, stats.New, stats.Published, stats.Failed, stats.Duration)

	if stats.Failed > 0 {
		a.logger.Warn("run finished with per-item failures", "failed", stats.Failed)
	}
	return nil
}

func runDaemon(cfgPath string) error {
	a, err := buildApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	lock, err := runlock.Acquire(a.cfg.Run.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		a.logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sched := scheduler.NewScheduler(a.service, a.cfg.Run.Interval, a.cfg.Run.Timeout, a.logger)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runPreview(cfgPath string) error {
	a, err := buildApp(cfgPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Run.Timeout)
	defer cancel()

	papers, err := a.service.Preview(ctx)
	if err != nil {
		return err
	}

	if len(papers) == 0 {
		fmt.Println("no new papers")
		return nil
	}

	for i := range papers {
		status := publisher.BuildStatus(&papers[i], a.cfg.Mastodon.MaxChars, a.cfg.Mastodon.Hashtags)
		fmt.Println("=== PREVIEW ===")
		fmt.Println(status)
		fmt.Println()
	}
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
