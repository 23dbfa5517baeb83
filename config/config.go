/*
Package config loads process-wide settings once at startup.

Values come from the environment (a .env file is honored when present),
with defaults matching the reseller's operating constants: allowed
transaction years, the fixed unit cost basis (HPP) used for margin
reporting, and the default note strings per stock operation.
*/
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Defaults.
const (
	DefaultMinYear    = 2025
	DefaultMaxYear    = 2050
	DefaultUnitCost   = "15500" // HPP, rupiah per cylinder
	DefaultSellPrice  = "20000" // suggested retail price
	DefaultPort       = 8080
	DefaultDBPath     = "gasledger.db"
	DefaultFilledNote = "isi dari agen"
	DefaultEmptyNote  = "beli tabung"
)

// Config is the full process configuration. Fixed at startup.
type Config struct {
	Port   int
	DBPath string

	// Allowed year window for transaction dates.
	MinYear int
	MaxYear int

	// UnitCost (HPP) feeds margin reporting only; it is not part of the
	// ledger's consistency domain.
	UnitCost decimal.Decimal

	// DefaultPrice pre-fills the sale form on clients.
	DefaultPrice decimal.Decimal

	FilledNote string
	EmptyNote  string

	// AdminToken gates the destructive reset endpoint. Empty disables
	// admin operations entirely.
	AdminToken string
}

// Load reads the environment (and .env, if any) and returns the config.
func Load() Config {
	godotenv.Load()

	return Config{
		Port:         envInt("PORT", DefaultPort),
		DBPath:       envStr("DB_PATH", DefaultDBPath),
		MinYear:      envInt("MIN_YEAR", DefaultMinYear),
		MaxYear:      envInt("MAX_YEAR", DefaultMaxYear),
		UnitCost:     envDecimal("UNIT_COST", DefaultUnitCost),
		DefaultPrice: envDecimal("DEFAULT_PRICE", DefaultSellPrice),
		FilledNote:   envStr("FILLED_NOTE", DefaultFilledNote),
		EmptyNote:    envStr("EMPTY_NOTE", DefaultEmptyNote),
		AdminToken:   os.Getenv("ADMIN_TOKEN"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(fallback)
	return d
}
