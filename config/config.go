// Package config loads server settings from flags, with defaults taken
// from the environment.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// DBSource is a postgres:// URL or a SQLite path (":memory:" allowed).
	DBSource        string
	Port            int
	OverdueInterval time.Duration
	CORSOrigins     []string
}

// StoreKind names the backend selected by DBSource.
type StoreKind string

const (
	StoreSQLite   StoreKind = "sqlite"
	StorePostgres StoreKind = "postgres"
)

// Store reports which backend DBSource selects.
func (c Config) Store() StoreKind {
	if strings.HasPrefix(c.DBSource, "postgres://") || strings.HasPrefix(c.DBSource, "postgresql://") {
		return StorePostgres
	}
	return StoreSQLite
}

// Load parses args (without the program name). Flags win over
// environment variables, which win over built-in defaults.
func Load(args []string) (*Config, error) {
	port, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	interval, err := envDuration("OVERDUE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	var origins string
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.DBSource, "db", envString("DB_SOURCE", "pardna.db"), "postgres URL or SQLite database path")
	fs.IntVar(&cfg.Port, "port", port, "HTTP server port")
	fs.DurationVar(&cfg.OverdueInterval, "overdue-interval", interval, "overdue monitor check interval (0 disables)")
	fs.StringVar(&origins, "cors-origins", envString("CORS_ORIGINS", ""), "comma-separated allowed CORS origins")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.DBSource == "" {
		return nil, fmt.Errorf("database source is required (-db or DB_SOURCE)")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.OverdueInterval < 0 {
		return nil, fmt.Errorf("overdue interval must not be negative")
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
