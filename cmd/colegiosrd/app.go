package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/colegiosrd/internal/config"
	"github.com/JonMunkholm/colegiosrd/internal/core"
	"github.com/JonMunkholm/colegiosrd/internal/logging"
	"github.com/JonMunkholm/colegiosrd/internal/source"
	"github.com/JonMunkholm/colegiosrd/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	svc  *core.Service
}

// loadConfig loads and validates configuration and configures logging.
// Variables already set in the environment take precedence over .env.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, withCode(exitConfig, err)
	}

	logging.Setup(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}

// newApp loads configuration, connects the pool and builds the service.
// The caller must call close.
func newApp(ctx context.Context, dryRun bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	pool, err := connect(ctx, cfg.Database)
	if err != nil {
		return nil, withCode(exitDB, err)
	}

	src := source.NewFallback(
		optionalFile(cfg.Import.SourceFile),
		optionalAPI(cfg.Import),
	)
	svc := core.NewService(store.NewPostgres(pool), src, serviceOptions(cfg, dryRun))

	return &app{cfg: cfg, pool: pool, svc: svc}, nil
}

func (a *app) close() {
	a.pool.Close()
}

// connect parses the database URL, applies pool settings and verifies the
// connection with a ping.
func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"), "host", u.Hostname())
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// serviceOptions maps configuration onto the import service.
func serviceOptions(cfg *config.Config, dryRun bool) core.Options {
	return core.Options{
		SourceName:         cfg.Import.SourceName,
		DuplicateThreshold: cfg.Import.DuplicateThreshold,
		Policy:             core.ValidationPolicy{MinStudents: cfg.Import.MinStudents},
		TopN:               cfg.Ranking.TopN,
		Timeout:            cfg.Import.Timeout,
		DryRun:             dryRun,
	}
}

func optionalFile(path string) *source.File {
	if path == "" {
		return nil
	}
	return source.NewFile(path)
}

func optionalAPI(cfg config.ImportConfig) *source.API {
	if cfg.SourceURL == "" {
		return nil
	}
	return source.NewAPI(cfg.SourceURL, cfg.HTTPTimeout)
}
