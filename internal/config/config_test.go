package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 30080 {
		t.Fatalf("unexpected default port: %d", cfg.Server.Port)
	}
	if cfg.Member.CacheTTL != 30*time.Minute {
		t.Fatalf("unexpected default member TTL: %v", cfg.Member.CacheTTL)
	}
	if cfg.Card.ValidityDays != 365 {
		t.Fatalf("unexpected default validity: %d", cfg.Card.ValidityDays)
	}
	if cfg.Member.WarmUpOnStart {
		t.Fatalf("warm-up on start must default to off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("MEMBER_CACHE_TTL_SECONDS", "60")
	t.Setenv("CARD_BATCH_CONCURRENCY", "4")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Member.CacheTTL != time.Minute {
		t.Fatalf("unexpected TTL: %v", cfg.Member.CacheTTL)
	}
	if cfg.Card.BatchConcurrency != 4 {
		t.Fatalf("unexpected concurrency: %d", cfg.Card.BatchConcurrency)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "99999")
	if _, err := Load(); err == nil {
		t.Fatalf("expected out-of-range port to fail validation")
	}
}
