package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/janasewa/membership-go/internal/config"
	"github.com/janasewa/membership-go/internal/health"
	"github.com/janasewa/membership-go/internal/server"
	"github.com/janasewa/membership-go/internal/service/cache"
	"github.com/janasewa/membership-go/internal/service/card"
	"github.com/janasewa/membership-go/internal/service/database"
	"github.com/janasewa/membership-go/internal/service/member"
)

// Container: wired runtime dependencies for the API server.
type Container struct {
	Config      *config.Config
	Server      *http.Server
	MemberCache *member.Cache

	postgres *database.PostgresService
	store    *cache.Service
	logger   *slog.Logger
}

// Bootstrap: constructs the full dependency graph: Postgres, the cache
// store, the member lookup cache, the card pipeline and the HTTP server.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	health.Init(cfg.Version)

	postgres, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres init failed: %w", err)
	}

	store, err := cache.NewCacheService(cache.Config{
		Host:     cfg.Valkey.Host,
		Port:     cfg.Valkey.Port,
		Password: cfg.Valkey.Password,
		DB:       cfg.Valkey.DB,
	}, logger)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("cache store init failed: %w", err)
	}

	repo := member.NewRepository(postgres, logger)
	memberCache := member.NewLookupCache(repo, store, logger, member.Config{
		TTL:                 cfg.Member.CacheTTL,
		WarmUpChunkSize:     cfg.Member.WarmUpChunk,
		WarmUpMaxGoroutines: cfg.Member.WarmUpParallel,
	})

	if cfg.Member.WarmUpOnStart {
		if loaded, err := memberCache.WarmUp(ctx, cfg.Member.WarmUpLimit); err == nil {
			logger.Info("Startup warm-up finished", slog.Int("loaded", loaded))
		}
	}

	cards := card.NewService(memberCache, store, logger, card.Config{
		Issuer:           cfg.Card.Issuer,
		ValidityDays:     cfg.Card.ValidityDays,
		BatchConcurrency: cfg.Card.BatchConcurrency,
	})

	apiHandler := server.NewAPIHandler(repo, memberCache, cards, logger)
	router, err := NewAPIRouter(ctx, cfg, logger, apiHandler)
	if err != nil {
		store.Close()
		postgres.Close()
		return nil, fmt.Errorf("router init failed: %w", err)
	}

	return &Container{
		Config:      cfg,
		Server:      NewAPIServer(cfg, router),
		MemberCache: memberCache,
		postgres:    postgres,
		store:       store,
		logger:      logger,
	}, nil
}

// BootstrapWarmUp: minimal graph for the warm-up tool (no HTTP server).
func BootstrapWarmUp(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	postgres, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres init failed: %w", err)
	}

	store, err := cache.NewCacheService(cache.Config{
		Host:     cfg.Valkey.Host,
		Port:     cfg.Valkey.Port,
		Password: cfg.Valkey.Password,
		DB:       cfg.Valkey.DB,
	}, logger)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("cache store init failed: %w", err)
	}

	repo := member.NewRepository(postgres, logger)
	memberCache := member.NewLookupCache(repo, store, logger, member.Config{
		TTL:                 cfg.Member.CacheTTL,
		WarmUpChunkSize:     cfg.Member.WarmUpChunk,
		WarmUpMaxGoroutines: cfg.Member.WarmUpParallel,
	})

	return &Container{
		Config:      cfg,
		MemberCache: memberCache,
		postgres:    postgres,
		store:       store,
		logger:      logger,
	}, nil
}

// Close: releases database and cache store connections.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.store != nil {
		_ = c.store.Close()
	}
	if c.postgres != nil {
		_ = c.postgres.Close()
	}
}
