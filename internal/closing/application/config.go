package application

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines closing workflow configuration. Variance tolerance is a
// business constant and deliberately not configurable here.
type Config struct {
	Currency          string   `yaml:"currency"`
	ExportRoot        string   `yaml:"export_root"`
	SessionTTLMinutes int      `yaml:"session_ttl_minutes"`
	SweepMinutes      int      `yaml:"sweep_minutes"`
	PriceTTLMinutes   int      `yaml:"price_ttl_minutes"`
	FuelCodes         []string `yaml:"fuel_codes"`
}

// LoadConfig loads config from env, with an optional yaml overlay pointed at
// by CLOSING_CONFIG.
func LoadConfig() (Config, error) {
	cfg := Config{
		Currency:          getenvDefault("CLOSING_CURRENCY", "KES"),
		ExportRoot:        getenvDefault("CLOSING_EXPORT_ROOT", filepath.FromSlash("var/exports/closings")),
		SessionTTLMinutes: getenvIntDefault("CLOSING_SESSION_TTL_MINUTES", 240),
		SweepMinutes:      getenvIntDefault("CLOSING_SWEEP_MINUTES", 10),
		PriceTTLMinutes:   getenvIntDefault("CLOSING_PRICE_TTL_MINUTES", 5),
		FuelCodes:         splitCSV(getenvDefault("CLOSING_FUEL_CODES", "")),
	}

	if path := os.Getenv("CLOSING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.ExportRoot == "" {
		return cfg, errors.New("closing config: export root required")
	}
	if cfg.SessionTTLMinutes <= 0 {
		cfg.SessionTTLMinutes = 240
	}
	if cfg.SweepMinutes <= 0 {
		cfg.SweepMinutes = 10
	}
	return cfg, nil
}

// SessionTTL returns the idle session lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// SweepInterval returns the idle sweep cadence.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepMinutes) * time.Minute
}

// PriceTTL returns the price cache lifetime.
func (c Config) PriceTTL() time.Duration {
	return time.Duration(c.PriceTTLMinutes) * time.Minute
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
