package chatdb

import (
	"context"

	"go.uber.org/zap"

	"github.com/omniql-engine/chatdb/engine/cache"
	"github.com/omniql-engine/chatdb/engine/generator"
	"github.com/omniql-engine/chatdb/internal/config"
)

// FromConfig builds an Engine from loaded configuration. The returned close
// function releases the Redis connection when one was opened.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	closeFn := func() error { return nil }
	opts := []Option{
		WithLogger(logger),
		WithMaxAttempts(cfg.Engine.MaxAttempts),
	}

	if cfg.Generator.Provider != "" && cfg.Generator.Provider != generator.ProviderNone {
		client, err := generator.NewClient(generator.Config{
			Provider: cfg.Generator.Provider,
			Model:    cfg.Generator.Model,
			APIKey:   cfg.Generator.APIKey,
			BaseURL:  cfg.Generator.BaseURL,
			Timeout:  cfg.Generator.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, WithGenerator(client))
	}

	switch cfg.Cache.Backend {
	case "memory":
		opts = append(opts, WithCache(cache.NewMemory(cfg.Cache.TTL)))
	case "redis":
		rc, rdb, err := cache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err != nil {
			// a missing cache never blocks translation
			logger.Warn("redis cache unavailable, continuing without cache", zap.Error(err))
			break
		}
		opts = append(opts, WithCache(rc))
		closeFn = rdb.Close
	}

	logger.Debug("engine configured",
		zap.String("target", cfg.Engine.Target),
		zap.String("generator", cfg.Generator.Provider),
		zap.String("cache", cfg.Cache.Backend))
	return New(opts...), closeFn, nil
}
