package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDevDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != devJWTSecret {
		t.Fatalf("expected development secret, got %q", cfg.JWTSecret)
	}
	if cfg.OTPTTL != defaultOTPTTL {
		t.Fatalf("expected default otp ttl, got %s", cfg.OTPTTL)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.IsProduction() {
		t.Fatalf("development must not be production")
	}
}

func TestLoadProductionRequiresInfra(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing DATABASE_URL error")
	}
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/onebills")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing JWT_SECRET error")
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("PORT", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OTPTTL != 90*time.Second {
		t.Fatalf("expected 90s, got %s", cfg.OTPTTL)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=7070\nKYC_WEBHOOK_SECRET=hook\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "")
	t.Setenv("KYC_WEBHOOK_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":7070" || cfg.KYCWebhookSecret != "hook" {
		t.Fatalf("expected values from .env, got %q %q", cfg.Port, cfg.KYCWebhookSecret)
	}
}

func TestLoadRejectsUnreadableDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".env"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("APP_ENV", "test")

	if _, err := Load(); err == nil {
		t.Fatalf("expected an unreadable .env to fail loading")
	}
}
