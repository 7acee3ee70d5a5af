package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/onexay/objstore/internal/storage"
)

// StorageBackend enumerates supported snapshot archives.
type StorageBackend string

const (
	// StorageBackendMemory keeps snapshots in-process.
	StorageBackendMemory StorageBackend = "memory"
	// StorageBackendBolt writes snapshots to a BoltDB file.
	StorageBackendBolt StorageBackend = "bolt"
	// StorageBackendKeyDB persists snapshots to KeyDB/Redis.
	StorageBackendKeyDB StorageBackend = "keydb"
)

// Config aggregates runtime configuration.
type Config struct {
	APIAddr         string        `toml:"api_addr"`
	LogLevel        string        `toml:"log_level"`
	DefaultBranch   string        `toml:"default_branch"`
	ShutdownTimeout Duration      `toml:"shutdown_timeout"`
	Storage         StorageConfig `toml:"storage"`
}

// StorageConfig contains backend selection and nested settings.
type StorageConfig struct {
	Backend  StorageBackend `toml:"backend"`
	BoltPath string         `toml:"bolt_path"`
	AutoSave bool           `toml:"autosave"`
	KeyDB    KeyDBConfig    `toml:"keydb"`
}

// KeyDBConfig mirrors storage.Config with file tags.
type KeyDBConfig struct {
	Addr     string `toml:"addr"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database int    `toml:"db"`
}

// Archive returns the connection settings for storage.NewKeyDBArchive.
func (k KeyDBConfig) Archive() storage.Config {
	return storage.Config{
		Addr:     k.Addr,
		Username: k.Username,
		Password: k.Password,
		Database: k.Database,
	}
}

// Duration decodes Go duration strings such as "5s" from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		APIAddr:         ":8080",
		LogLevel:        "info",
		DefaultBranch:   "master",
		ShutdownTimeout: Duration{5 * time.Second},
		Storage: StorageConfig{
			Backend:  StorageBackendMemory,
			BoltPath: "data/objstore.db",
		},
	}
}

// Load reads the optional TOML file named by OBJSTORE_CONFIG and then
// applies environment variables on top.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("OBJSTORE_CONFIG"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// LoadFile decodes a TOML file over the defaults. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects unknown backends.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case StorageBackendMemory, StorageBackendBolt, StorageBackendKeyDB:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == StorageBackendBolt && c.Storage.BoltPath == "" {
		return fmt.Errorf("bolt backend requires a path")
	}
	return nil
}

// SlogLevel maps LogLevel onto slog levels, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyEnv(cfg *Config) {
	cfg.APIAddr = envDefault("API_ADDR", cfg.APIAddr)
	cfg.LogLevel = envDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultBranch = envDefault("DEFAULT_BRANCH", cfg.DefaultBranch)
	cfg.ShutdownTimeout.Duration = envDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout.Duration)

	cfg.Storage.Backend = StorageBackend(strings.ToLower(envDefault("STORAGE_BACKEND", string(cfg.Storage.Backend))))
	cfg.Storage.BoltPath = envDefault("BOLT_PATH", cfg.Storage.BoltPath)
	cfg.Storage.AutoSave = envBool("AUTOSAVE", cfg.Storage.AutoSave)
	cfg.Storage.KeyDB.Addr = envDefault("KEYDB_ADDR", cfg.Storage.KeyDB.Addr)
	cfg.Storage.KeyDB.Username = envDefault("KEYDB_USERNAME", cfg.Storage.KeyDB.Username)
	cfg.Storage.KeyDB.Password = envDefault("KEYDB_PASSWORD", cfg.Storage.KeyDB.Password)
	cfg.Storage.KeyDB.Database = envInt("KEYDB_DB", cfg.Storage.KeyDB.Database)
}

func envDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return def
}
