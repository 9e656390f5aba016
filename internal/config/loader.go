package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYDECK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYDECK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYDECK_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYDECK_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYDECK_POLYMARKET_DATA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYDECK_POLYMARKET_WS_HOST")

	// ── Database ──
	setStr(&cfg.Database.DSN, "POLYDECK_DATABASE_DSN")
	setStr(&cfg.Database.Host, "POLYDECK_DATABASE_HOST")
	setInt(&cfg.Database.Port, "POLYDECK_DATABASE_PORT")
	setStr(&cfg.Database.Database, "POLYDECK_DATABASE_NAME")
	setStr(&cfg.Database.User, "POLYDECK_DATABASE_USER")
	setStr(&cfg.Database.Password, "POLYDECK_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "POLYDECK_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "POLYDECK_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "POLYDECK_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "POLYDECK_DATABASE_RUN_MIGRATIONS")

	// ── Cache ──
	setStr(&cfg.Cache.Backend, "POLYDECK_CACHE_BACKEND")
	setDuration(&cfg.Cache.TTL, "POLYDECK_CACHE_TTL")
	setStr(&cfg.Cache.Addr, "POLYDECK_CACHE_ADDR")
	setStr(&cfg.Cache.Password, "POLYDECK_CACHE_PASSWORD")
	setInt(&cfg.Cache.DB, "POLYDECK_CACHE_DB")
	setInt(&cfg.Cache.PoolSize, "POLYDECK_CACHE_POOL_SIZE")
	setBool(&cfg.Cache.TLSEnabled, "POLYDECK_CACHE_TLS_ENABLED")

	// ── Sync ──
	setBool(&cfg.Sync.Enabled, "POLYDECK_SYNC_ENABLED")
	setDuration(&cfg.Sync.Interval, "POLYDECK_SYNC_INTERVAL")
	setDuration(&cfg.Sync.StartupDelay, "POLYDECK_SYNC_STARTUP_DELAY")
	setInt(&cfg.Sync.BatchLimit, "POLYDECK_SYNC_BATCH_LIMIT")

	// ── Enricher ──
	setDuration(&cfg.Enricher.Timeout, "POLYDECK_ENRICHER_TIMEOUT")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYDECK_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "POLYDECK_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "POLYDECK_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "POLYDECK_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "POLYDECK_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "POLYDECK_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.ForcePathStyle, "POLYDECK_ARCHIVE_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYDECK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYDECK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYDECK_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYDECK_MODE")
	setStr(&cfg.LogLevel, "POLYDECK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
