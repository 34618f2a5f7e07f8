package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-insight/internal/application"
	appinsight "github.com/bryanwahyu/automaton-insight/internal/application/insight"
	"github.com/bryanwahyu/automaton-insight/internal/config"
	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/infra/ai/fake"
	"github.com/bryanwahyu/automaton-insight/internal/infra/ai/gemini"
	"github.com/bryanwahyu/automaton-insight/internal/infra/ai/openai"
	"github.com/bryanwahyu/automaton-insight/internal/infra/ai/retry"
	"github.com/bryanwahyu/automaton-insight/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/automaton-insight/internal/infra/db/mysql"
	"github.com/bryanwahyu/automaton-insight/internal/infra/db/postgres"
	"github.com/bryanwahyu/automaton-insight/internal/infra/eventbus"
	"github.com/bryanwahyu/automaton-insight/internal/infra/simulator"
	minioStore "github.com/bryanwahyu/automaton-insight/internal/infra/storage"
	"github.com/bryanwahyu/automaton-insight/internal/middleware"
)

// app holds every wired component.
type app struct {
	svc      *appinsight.Service
	slots    *appinsight.Registry
	bus      *eventbus.Bus
	feed     *simulator.Feed
	checkers map[string]middleware.HealthChecker
	db       *sql.DB
}

func (a *app) Close() {
	if a.slots != nil {
		a.slots.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{checkers: map[string]middleware.HealthChecker{}}
	clock := application.SystemClock{}

	gw, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	runs, err := a.newRunRepository(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bus = eventbus.New(
		eventbus.WithCapacity(cfg.Events.Capacity),
		eventbus.WithMaxTenants(cfg.Events.MaxTenants),
		eventbus.WithClock(clock),
		eventbus.WithLogger(logger.Named("eventbus")),
	)

	a.svc = &appinsight.Service{
		Gateway: gw,
		Runs:    runs,
		Events:  a.bus,
		Clock:   clock,
		Logger:  logger.Named("insight"),
		Timeout: cfg.LLM.Timeout,
	}

	// init minio
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("minio init error: %w", err)
		}
		a.svc.Payloads = store
	}

	a.slots, err = appinsight.NewRegistry(cfg.Slots.RegistrySize, a.svc, clock)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.feed = simulator.NewFeed(cfg.Telemetry.Metrics,
		simulator.WithInterval(cfg.Telemetry.Interval),
		simulator.WithWindow(cfg.Telemetry.Window),
		simulator.WithSeed(cfg.Telemetry.Seed),
		simulator.WithMaxSeries(cfg.Telemetry.MaxSeries),
		simulator.WithLogger(logger.Named("telemetry")),
	)

	a.checkers["eventbus"] = &middleware.EventBusChecker{Bus: a.bus}
	if cfg.Telemetry.Enabled {
		a.checkers["telemetry"] = &middleware.TelemetryChecker{Feed: a.feed, MaxAge: 3 * cfg.Telemetry.Interval}
	}

	logger.Info("components wired",
		zap.String("provider", gw.Name()),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("payload_archive", cfg.Minio.Enabled))
	return a, nil
}

func newGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.Gateway, error) {
	var base domain.Gateway
	switch cfg.LLM.Provider {
	case "openai":
		base = openai.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, openai.Mode(cfg.LLM.Mode))
	case "gemini":
		cli, err := gemini.NewClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		if err != nil {
			return nil, err
		}
		base = cli
	case "fake":
		base = fake.New(cfg.LLM.FakeLatency)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	return retry.New(base, retry.Options{
		MaxAttempts: cfg.LLM.MaxAttempts,
		BaseDelay:   cfg.LLM.BaseDelay,
		Logger:      logger.Named("retry"),
	}), nil
}

func (a *app) newRunRepository(ctx context.Context, cfg *config.Config) (domain.Repository, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect error: %w", err)
		}
		a.db = db
		repo := mysqlp.NewRunRepository(db)
		if err := ensure(ctx, repo.EnsureSchema); err != nil {
			return nil, err
		}
		a.checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return repo, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect error: %w", err)
		}
		a.db = db
		repo := postgres.NewRunRepository(db)
		if err := ensure(ctx, repo.EnsureSchema); err != nil {
			return nil, err
		}
		a.checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		return repo, nil
	}
	return memory.NewRunRepository(cfg.Database.MaxRuns), nil
}

func ensure(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return fn(ctx)
}
