package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"gopkg.in/natefinch/lumberjack.v2"

	"growi_syncer/internal/config"
	"growi_syncer/internal/publisher"
	"growi_syncer/internal/service"
	"growi_syncer/internal/source/growi"
	"growi_syncer/internal/storage/postgres"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	syncer  *service.SyncService
	closers []io.Closer
}

func newApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg}
	a.logger = a.setupLogger(cfg.Log)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	a.closers = append(a.closers, db)
	a.logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, a.logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.closers = append(a.closers, rabbitMQ)
		pub = rabbitMQ
	}

	client, err := growi.New(growi.Config{
		BaseURL:          cfg.Growi.BaseURL,
		OrganizationSlug: cfg.Growi.OrganizationSlug,
		DomainOrigin:     cfg.Growi.DomainOrigin,
		Source:           cfg.Growi.Source,
		Timeout:          cfg.Growi.Timeout,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create growi client: %w", err)
	}

	fetcher := growi.NewRetryingFetcher(
		client,
		growi.DefaultPolicy(cfg.Growi.Retry.MaxAttempts, cfg.Growi.Retry.BaseDelay),
		a.logger.With("component", "growi"),
	)

	writer := service.NewUpsertEngine(
		postgres.NewPostStore(db),
		postgres.NewMetricsStore(db),
		postgres.NewTxManager(db),
	)

	a.syncer = service.NewSyncService(fetcher, writer, pub, a.logger)
	return a, nil
}

// setupLogger writes JSON to stdout and, when a file is configured, to a
// rotating log file as well.
func (a *app) setupLogger(cfg config.LogConfig) *slog.Logger {
	var logLevel slog.Level
	switch cfg.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		a.closers = append(a.closers, file)
		out = io.MultiWriter(os.Stdout, file)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
