package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Program  ProgramConfig  `yaml:"program"`
	Suggest  SuggestConfig  `yaml:"suggest"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// Primary and secondary backend names accepted in the storage section.
const (
	PrimaryFile       = "file"
	PrimaryRedis      = "redis"
	SecondarySQLite   = "sqlite"
	SecondaryPostgres = "postgres"
)

type StorageConfig struct {
	Dir          string `yaml:"dir"`
	Primary      string `yaml:"primary"`
	Secondary    string `yaml:"secondary"`
	QuotaBytes   int    `yaml:"quota_bytes"`
	MinFreeBytes int    `yaml:"min_free_bytes"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ProgramConfig struct {
	Source string `yaml:"source"`
	// Name prefixes the raw per-set keys.
	Name string `yaml:"name"`
}

type SuggestConfig struct {
	CacheMB int `yaml:"cache_mb"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// SlogLevel maps the configured level name to a slog.Level. Unknown names
// yield info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
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

// Default returns the configuration used for unset fields.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8080},
		Storage: StorageConfig{
			Dir:          "./data",
			Primary:      PrimaryFile,
			Secondary:    SecondarySQLite,
			QuotaBytes:   5_000_000,
			MinFreeBytes: 1_000_000,
		},
		Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "liftlog:"},
		Log:     LogConfig{Level: "info"},
		Program: ProgramConfig{Name: "program"},
		Suggest: SuggestConfig{CacheMB: 1},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. Env vars use the prefix LIFTLOG_ and
// underscore-separated paths:
//
//	LIFTLOG_SERVER_HOST, LIFTLOG_SERVER_PORT, LIFTLOG_AUTH_API_KEY,
//	LIFTLOG_STORAGE_DIR, LIFTLOG_STORAGE_PRIMARY, LIFTLOG_STORAGE_SECONDARY,
//	LIFTLOG_REDIS_ADDR, LIFTLOG_REDIS_PASSWORD, LIFTLOG_REDIS_DB,
//	LIFTLOG_DB_HOST, LIFTLOG_DB_PORT, LIFTLOG_DB_NAME,
//	LIFTLOG_DB_USER, LIFTLOG_DB_PASSWORD, LIFTLOG_DB_SSLMODE,
//	LIFTLOG_LOG_LEVEL, LIFTLOG_LOG_FILE, LIFTLOG_PROGRAM_SOURCE,
//	LIFTLOG_PROGRAM_NAME
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "LIFTLOG_SERVER_HOST")
	setInt(&cfg.Server.Port, "LIFTLOG_SERVER_PORT")
	setString(&cfg.Auth.APIKey, "LIFTLOG_AUTH_API_KEY")

	setString(&cfg.Storage.Dir, "LIFTLOG_STORAGE_DIR")
	setString(&cfg.Storage.Primary, "LIFTLOG_STORAGE_PRIMARY")
	setString(&cfg.Storage.Secondary, "LIFTLOG_STORAGE_SECONDARY")

	setString(&cfg.Redis.Addr, "LIFTLOG_REDIS_ADDR")
	setString(&cfg.Redis.Password, "LIFTLOG_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LIFTLOG_REDIS_DB")

	setString(&cfg.Database.Host, "LIFTLOG_DB_HOST")
	setInt(&cfg.Database.Port, "LIFTLOG_DB_PORT")
	setString(&cfg.Database.Name, "LIFTLOG_DB_NAME")
	setString(&cfg.Database.User, "LIFTLOG_DB_USER")
	setString(&cfg.Database.Password, "LIFTLOG_DB_PASSWORD")
	setString(&cfg.Database.SSLMode, "LIFTLOG_DB_SSLMODE")

	setString(&cfg.Log.Level, "LIFTLOG_LOG_LEVEL")
	setString(&cfg.Log.File, "LIFTLOG_LOG_FILE")
	setString(&cfg.Program.Source, "LIFTLOG_PROGRAM_SOURCE")
	setString(&cfg.Program.Name, "LIFTLOG_PROGRAM_NAME")
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}

	switch c.Storage.Primary {
	case PrimaryFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file primary store")
		}
	case PrimaryRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis primary store")
		}
	default:
		return fmt.Errorf("storage.primary must be %q or %q, got %q", PrimaryFile, PrimaryRedis, c.Storage.Primary)
	}

	switch c.Storage.Secondary {
	case SecondarySQLite:
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the sqlite secondary store")
		}
	case SecondaryPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("storage.secondary must be %q or %q, got %q", SecondarySQLite, SecondaryPostgres, c.Storage.Secondary)
	}

	if c.Storage.QuotaBytes <= 0 {
		return fmt.Errorf("storage.quota_bytes must be positive")
	}
	if c.Storage.MinFreeBytes < 0 || c.Storage.MinFreeBytes > c.Storage.QuotaBytes {
		return fmt.Errorf("storage.min_free_bytes must be between 0 and storage.quota_bytes")
	}
	if c.Program.Name == "" {
		return fmt.Errorf("program.name is required")
	}
	if c.Suggest.CacheMB < 0 {
		return fmt.Errorf("suggest.cache_mb must not be negative")
	}
	return nil
}
