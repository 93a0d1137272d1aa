package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds everything the exchange daemon needs to start. Values come
// from the environment, optionally seeded from a .env file; every field has
// a sensible default so a bare start works.
type Config struct {
	Addr        string   // HTTP listen address
	DBPath      string   // SQLite database path
	Tickers     []string // instruments registered at startup
	CORSOrigins []string // allowed browser origins, empty allows all

	EnableBots     bool
	ReferencePrice decimal.Decimal // starting price for the bot reference walk
}

// Load reads the configuration, first loading envFile if it exists. A
// missing env file is not an error; a malformed one is.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Addr:           envString("EXCHANGE_ADDR", ":8088"),
		DBPath:         envString("EXCHANGE_DB", "exchange.db"),
		Tickers:        envList("EXCHANGE_TICKERS", []string{"GOOG", "MSFT", "AAPL"}),
		CORSOrigins:    envList("EXCHANGE_CORS_ORIGINS", nil),
		EnableBots:     envBool("EXCHANGE_BOTS", true),
		ReferencePrice: decimal.NewFromInt(100),
	}

	if raw := os.Getenv("EXCHANGE_REFERENCE_PRICE"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("EXCHANGE_REFERENCE_PRICE: %w", err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("EXCHANGE_REFERENCE_PRICE must be positive, got %s", price)
		}
		cfg.ReferencePrice = price
	}

	if len(cfg.Tickers) == 0 {
		return nil, fmt.Errorf("EXCHANGE_TICKERS must name at least one instrument")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envList splits a comma-separated variable, trimming whitespace and
// dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
