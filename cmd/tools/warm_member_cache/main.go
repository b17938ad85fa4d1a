package main

import (
	"context"
	"fmt"

	"log/slog"
	"time"

	"github.com/janasewa/membership-go/internal/app"
	"github.com/janasewa/membership-go/internal/config"
	"github.com/janasewa/membership-go/internal/util"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		return
	}

	logger, err := util.EnableFileLoggingWithLevel(util.LogConfig{
		Dir:        cfg.Logging.Dir,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, "warm_member_cache.log", cfg.Logging.Level)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		return
	}

	logger.Info("Manual member cache refresh started")

	container, err := app.BootstrapWarmUp(cfg, logger)
	if err != nil {
		logger.Error("Manual cache refresh failed", slog.Any("error", err))
		return
	}
	defer container.Close()

	loaded, err := container.MemberCache.WarmUp(ctx, cfg.Member.WarmUpLimit)
	if err != nil {
		logger.Error("Manual cache refresh failed", slog.Any("error", err))
		return
	}

	logger.Info("Manual member cache refresh completed successfully", slog.Int("loaded", loaded))
}
