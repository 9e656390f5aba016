// Package config defines the top-level configuration for polydeck and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYDECK_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Database   DatabaseConfig   `toml:"database"`
	Cache      CacheConfig      `toml:"cache"`
	Sync       SyncConfig       `toml:"sync"`
	Enricher   EnricherConfig   `toml:"enricher"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the upstream API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
	DataHost  string `toml:"data_host"`
	WsHost    string `toml:"ws_host"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// CacheConfig selects and configures the request cache backend.
type CacheConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend    string   `toml:"backend"`
	TTL        duration `toml:"ttl"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	TLSEnabled bool     `toml:"tls_enabled"`
}

// SyncConfig controls the periodic market sync job.
type SyncConfig struct {
	Enabled      bool     `toml:"enabled"`
	Interval     duration `toml:"interval"`
	StartupDelay duration `toml:"startup_delay"`
	BatchLimit   int      `toml:"batch_limit"`
}

// EnricherConfig controls the real-time price enrichment session.
type EnricherConfig struct {
	Timeout duration `toml:"timeout"`
}

// ArchiveConfig holds S3-compatible cold storage parameters for sync
// snapshots.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration wraps time.Duration so TOML values can be written as "30s", "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration, suitable for local
// development against the public Polymarket endpoints.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polydeck",
			User:          "polydeck",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     duration{60 * time.Second},
			Addr:    "localhost:6379",
		},
		Sync: SyncConfig{
			Enabled:      true,
			Interval:     duration{10 * time.Minute},
			StartupDelay: duration{15 * time.Second},
			BatchLimit:   100,
		},
		Enricher: EnricherConfig{
			Timeout: duration{8 * time.Second},
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// Validate checks the configuration for values that would prevent startup.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "serve", "sync", "full":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Polymarket.GammaHost == "" {
		return fmt.Errorf("config: polymarket.gamma_host is required")
	}
	if c.Polymarket.ClobHost == "" {
		return fmt.Errorf("config: polymarket.clob_host is required")
	}
	if c.Polymarket.WsHost == "" {
		return fmt.Errorf("config: polymarket.ws_host is required")
	}

	switch c.Cache.Backend {
	case "", "memory":
	case "redis":
		if c.Cache.Addr == "" {
			return fmt.Errorf("config: cache.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unsupported cache backend %q", c.Cache.Backend)
	}

	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("config: database.dsn or database.host is required")
	}

	if c.Sync.Enabled && c.Sync.Interval.Duration <= 0 {
		return fmt.Errorf("config: sync.interval must be positive")
	}
	if c.Enricher.Timeout.Duration <= 0 {
		return fmt.Errorf("config: enricher.timeout must be positive")
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("config: archive.bucket is required when archiving is enabled")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}

	return nil
}
