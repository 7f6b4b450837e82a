package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-query-gateway/internal/access"
	"go-query-gateway/internal/cache"
	"go-query-gateway/internal/clients"
	"go-query-gateway/internal/config"
	"go-query-gateway/internal/guard"
	"go-query-gateway/internal/security"
)

// app is the process wiring shared by the commands
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	guard   *guard.Guard
	bq      *clients.BigQueryClient
	cache   cache.Cache
	schemas *cache.CachedSchemaSource
}

// newLogger returns a production logger, or a development one when
// ENV=development. Both write to stderr.
func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads the environment and the access policy. A broken access
// file falls back to the default policy with a warning.
func loadConfig(logger *zap.Logger) (*config.Config, *config.AccessConfig, error) {
	cfg := config.Load()
	if accessFile != "" {
		cfg.AccessControlFile = accessFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	policy, err := config.LoadAccessConfig(cfg.AccessControlFile)
	if err != nil {
		logger.Warn("Failed to load access control file, using default policy",
			zap.String("path", cfg.AccessControlFile),
			zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Environment),
		zap.String("access_control_file", cfg.AccessControlFile),
		zap.Stringer("limits", cfg.Limits))

	return cfg, policy, nil
}

// newApp wires the guard. With connect false, or when no project is
// configured, the guard runs without BigQuery and only local checks work.
func newApp(ctx context.Context, logger *zap.Logger, connect bool) (*app, error) {
	cfg, policy, err := loadConfig(logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	var opts []guard.Option
	var executor guard.Executor

	if connect {
		bq, err := clients.NewBigQueryClient(ctx, cfg.BigQuery, logger)
		if err != nil {
			logger.Warn("BigQuery client initialization failed", zap.Error(err))
		} else {
			a.bq = bq
			executor = bq

			a.cache = cache.New(cfg.Redis, cfg.SchemaCacheTTL, logger)
			a.schemas = cache.NewCachedSchemaSource(bq, a.cache, cfg.SchemaCacheTTL, logger)
			opts = append(opts, guard.WithSchemaSource(a.schemas))
		}
	}

	a.guard, err = guard.NewGuard(
		security.NewQueryValidator(nil),
		access.NewService(policy),
		executor,
		cfg.Limits,
		logger,
		opts...,
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the cache and the BigQuery client
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Failed to close cache", zap.Error(err))
		}
	}
	if a.bq != nil {
		if err := a.bq.Close(); err != nil {
			a.logger.Warn("Failed to close BigQuery client", zap.Error(err))
		}
	}
}
