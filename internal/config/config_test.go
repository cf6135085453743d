package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "SQLITE_PATH", "REDIS_URL",
		"TOKEN_SECRET", "TOKEN_TTL", "HISTORY_LIMIT", "RELAY_MULTI_ROOM",
		"MESSAGE_BURST", "MESSAGE_REFILL_INTERVAL", "MAX_MESSAGE_SIZE",
		"ALLOWED_ORIGINS", "RATE_LIMIT_WHITELIST",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.HistoryLimit != 50 {
		t.Errorf("HistoryLimit = %d, want 50", cfg.HistoryLimit)
	}
	if cfg.MultiRoom {
		t.Error("MultiRoom should default to false")
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("MaxMessageSize = %d, want 4096", cfg.MaxMessageSize)
	}
	if cfg.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins = %v, want nil", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "staging")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("RELAY_MULTI_ROOM", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, https://app.example.com")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Port = %s, want 9000", cfg.Port)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("TokenTTL = %v, want 1h", cfg.TokenTTL)
	}
	if cfg.HistoryLimit != 25 {
		t.Errorf("HistoryLimit = %d, want 25", cfg.HistoryLimit)
	}
	if !cfg.MultiRoom {
		t.Error("MultiRoom should be true")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://app.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("TOKEN_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", "/tmp/relay.db")

	defer func() {
		if recover() == nil {
			t.Error("Load() should panic in production without TOKEN_SECRET")
		}
	}()
	Load()
}
