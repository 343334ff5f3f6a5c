package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Platform PlatformConfig `yaml:"platform"`
	Auth     AuthConfig     `yaml:"auth"`
	Sync     SyncConfig     `yaml:"sync"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PlatformConfig contains external platform API settings.
type PlatformConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"-"` // env-only, never in YAML
	PageSize int    `yaml:"page_size"`
}

// AuthConfig contains authentication settings for the serve API.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// SyncConfig contains sync engine settings.
type SyncConfig struct {
	ChunkSize      int      `yaml:"chunk_size"`
	ConflictPolicy string   `yaml:"conflict_policy"`
	Tolerance      Duration `yaml:"tolerance"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	SyncInterval     Duration `yaml:"sync_interval"`
	SnapshotInterval Duration `yaml:"snapshot_interval"`
	Entities         []string `yaml:"entities"` // empty = all registered
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SnapshotConfig contains S3-compatible snapshot storage settings.
type SnapshotConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether snapshot uploads are configured.
func (s SnapshotConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("FIELDBRIDGE_CONFIG_PATH", "config/fieldbridge.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/fieldbridge.db",
		},
		Platform: PlatformConfig{
			PageSize: 200,
		},
		Sync: SyncConfig{
			ChunkSize:      200,
			ConflictPolicy: "most_recent_wins",
			Tolerance:      Duration(1 * time.Second),
		},
		Worker: WorkerConfig{
			SyncInterval:     Duration(15 * time.Minute),
			SnapshotInterval: Duration(24 * time.Hour),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("FIELDBRIDGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FIELDBRIDGE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("FIELDBRIDGE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("FIELDBRIDGE_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("FIELDBRIDGE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Platform
	if v := os.Getenv("FIELDBRIDGE_PLATFORM_URL"); v != "" {
		cfg.Platform.BaseURL = v
	}
	if v := os.Getenv("FIELDBRIDGE_PLATFORM_API_KEY"); v != "" {
		cfg.Platform.APIKey = v
	}
	if v := os.Getenv("FIELDBRIDGE_PLATFORM_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Platform.PageSize = n
		}
	}

	// Auth
	if v := os.Getenv("FIELDBRIDGE_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Sync
	if v := os.Getenv("FIELDBRIDGE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.ChunkSize = n
		}
	}
	if v := os.Getenv("FIELDBRIDGE_CONFLICT_POLICY"); v != "" {
		cfg.Sync.ConflictPolicy = v
	}
	if v := os.Getenv("FIELDBRIDGE_CONFLICT_TOLERANCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Tolerance = Duration(d)
		}
	}

	// Worker
	if v := os.Getenv("FIELDBRIDGE_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.SyncInterval = Duration(d)
		}
	}
	if v := os.Getenv("FIELDBRIDGE_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.SnapshotInterval = Duration(d)
		}
	}

	// Log
	if v := os.Getenv("FIELDBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FIELDBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Snapshot storage
	if v := os.Getenv("FIELDBRIDGE_SNAPSHOT_ENDPOINT"); v != "" {
		cfg.Snapshot.Endpoint = v
	}
	if v := os.Getenv("FIELDBRIDGE_SNAPSHOT_BUCKET"); v != "" {
		cfg.Snapshot.Bucket = v
	}
	if v := os.Getenv("FIELDBRIDGE_SNAPSHOT_ACCESS_KEY"); v != "" {
		cfg.Snapshot.AccessKey = v
	}
	if v := os.Getenv("FIELDBRIDGE_SNAPSHOT_SECRET_KEY"); v != "" {
		cfg.Snapshot.SecretKey = v
	}
	if v := os.Getenv("FIELDBRIDGE_SNAPSHOT_USE_SSL"); v != "" {
		cfg.Snapshot.UseSSL = v == "true" || v == "1"
	}
}

// validate checks that required configuration values are set.
// In dev mode (FIELDBRIDGE_DEV_MODE=true), credential validation is skipped.
func (c *Config) validate() error {
	switch c.Sync.ConflictPolicy {
	case "source_wins", "target_wins", "most_recent_wins":
	default:
		return fmt.Errorf("unknown conflict policy %q", c.Sync.ConflictPolicy)
	}
	if c.Sync.ChunkSize <= 0 {
		return errors.New("sync.chunk_size must be positive")
	}

	// Dev mode bypasses credential validation
	if os.Getenv("FIELDBRIDGE_DEV_MODE") == "true" {
		return nil
	}

	if c.Platform.BaseURL == "" {
		return errors.New("FIELDBRIDGE_PLATFORM_URL is required")
	}
	if c.Platform.APIKey == "" {
		return errors.New("FIELDBRIDGE_PLATFORM_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
