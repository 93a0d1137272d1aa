package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EXCHANGE_ADDR", "EXCHANGE_DB", "EXCHANGE_TICKERS",
		"EXCHANGE_CORS_ORIGINS", "EXCHANGE_BOTS", "EXCHANGE_REFERENCE_PRICE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr != ":8088" {
		t.Errorf("expected default addr :8088, got %s", cfg.Addr)
	}
	if cfg.DBPath != "exchange.db" {
		t.Errorf("expected default db path exchange.db, got %s", cfg.DBPath)
	}
	if len(cfg.Tickers) != 3 {
		t.Errorf("expected 3 default tickers, got %v", cfg.Tickers)
	}
	if !cfg.EnableBots {
		t.Error("bots should default to enabled")
	}
	if !cfg.ReferencePrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected default reference price 100, got %s", cfg.ReferencePrice)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXCHANGE_ADDR", ":9000")
	t.Setenv("EXCHANGE_TICKERS", "SPY, QQQ ,IWM")
	t.Setenv("EXCHANGE_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("EXCHANGE_BOTS", "false")
	t.Setenv("EXCHANGE_REFERENCE_PRICE", "24.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Addr != ":9000" {
		t.Errorf("expected addr :9000, got %s", cfg.Addr)
	}
	if len(cfg.Tickers) != 3 || cfg.Tickers[1] != "QQQ" {
		t.Errorf("tickers not parsed: %v", cfg.Tickers)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("origins not parsed: %v", cfg.CORSOrigins)
	}
	if cfg.EnableBots {
		t.Error("bots should be disabled")
	}
	if !cfg.ReferencePrice.Equal(decimal.RequireFromString("24.5")) {
		t.Errorf("expected reference price 24.5, got %s", cfg.ReferencePrice)
	}
}

func TestEnvFile(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "EXCHANGE_ADDR=:7777\nEXCHANGE_TICKERS=IBM\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Errorf("expected addr from env file, got %s", cfg.Addr)
	}
	if len(cfg.Tickers) != 1 || cfg.Tickers[0] != "IBM" {
		t.Errorf("expected tickers [IBM], got %v", cfg.Tickers)
	}
}

func TestMissingEnvFileIsFine(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing env file should not error: %v", err)
	}
}

func TestBadReferencePrice(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXCHANGE_REFERENCE_PRICE", "not-a-number")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for malformed reference price")
	}

	t.Setenv("EXCHANGE_REFERENCE_PRICE", "-5")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for negative reference price")
	}
}
