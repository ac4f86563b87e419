package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

type Config struct {
	APIBaseURL        string
	APITimeout        time.Duration
	UserAgent         string
	Platform          string
	StorageDriver     string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	KeyPrefix         string
	LogLevel          string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"api-url":      "api.base_url",
	"timeout":      "api.timeout",
	"platform":     "platform",
	"storage":      "storage.driver",
	"database-url": "storage.database_url",
	"redis-addr":   "storage.redis_addr",
	"log-level":    "log.level",
}

// RegisterFlags adds the config overrides to flags. They only take effect when
// set explicitly; env and defaults apply otherwise.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("api-url", "", "backend API base URL including the prefix")
	flags.String("timeout", "", "per-request timeout, e.g. 15s")
	flags.String("platform", "", "token storage platform: native or web")
	flags.String("storage", "", "device storage driver: memory, postgres or redis")
	flags.String("database-url", "", "postgres URL for the postgres storage driver")
	flags.String("redis-addr", "", "redis address for the redis storage driver")
	flags.String("log-level", "", "debug, info, warn or error")
}

// LoadDotEnv reads KEY=value pairs from the given files (".env" when none) into
// the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHEDULA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.base_url", "http://127.0.0.1:8000/api")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.user_agent", "schedula-client")
	v.SetDefault("platform", "native")
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.key_prefix", "schedula:")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("log.level", "info")

	_ = v.BindEnv("api.base_url", "SCHEDULA_API_BASE_URL", "SCHEDULA_API_URL", "API_URL")
	_ = v.BindEnv("api.timeout", "SCHEDULA_API_TIMEOUT")
	_ = v.BindEnv("api.user_agent", "SCHEDULA_API_USER_AGENT")
	_ = v.BindEnv("platform", "SCHEDULA_PLATFORM")
	_ = v.BindEnv("storage.driver", "SCHEDULA_STORAGE_DRIVER")
	_ = v.BindEnv("storage.database_url", "SCHEDULA_STORAGE_DATABASE_URL", "SCHEDULA_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("storage.redis_addr", "SCHEDULA_STORAGE_REDIS_ADDR", "SCHEDULA_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("storage.redis_password", "SCHEDULA_STORAGE_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("storage.redis_db", "SCHEDULA_STORAGE_REDIS_DB", "REDIS_DB")
	_ = v.BindEnv("storage.key_prefix", "SCHEDULA_STORAGE_KEY_PREFIX")
	_ = v.BindEnv("database.max_open_conns", "SCHEDULA_DATABASE_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.max_idle_conns", "SCHEDULA_DATABASE_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "SCHEDULA_DATABASE_CONN_MAX_LIFETIME")
	_ = v.BindEnv("database.conn_max_idle_time", "SCHEDULA_DATABASE_CONN_MAX_IDLE_TIME")
	_ = v.BindEnv("log.level", "SCHEDULA_LOG_LEVEL", "LOG_LEVEL")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	timeout, err := time.ParseDuration(v.GetString("api.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("api.timeout: %w", err)
	}
	connMaxLifetime, err := time.ParseDuration(v.GetString("database.conn_max_lifetime"))
	if err != nil {
		return Config{}, err
	}
	connMaxIdleTime, err := time.ParseDuration(v.GetString("database.conn_max_idle_time"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIBaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString("api.base_url")), "/"),
		APITimeout:        timeout,
		UserAgent:         v.GetString("api.user_agent"),
		Platform:          strings.ToLower(strings.TrimSpace(v.GetString("platform"))),
		StorageDriver:     strings.ToLower(strings.TrimSpace(v.GetString("storage.driver"))),
		DatabaseURL:       v.GetString("storage.database_url"),
		RedisAddr:         strings.TrimSpace(v.GetString("storage.redis_addr")),
		RedisPassword:     v.GetString("storage.redis_password"),
		RedisDB:           v.GetInt("storage.redis_db"),
		KeyPrefix:         v.GetString("storage.key_prefix"),
		LogLevel:          v.GetString("log.level"),
		DBMaxOpenConns:    v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:    v.GetInt("database.max_idle_conns"),
		DBConnMaxLifetime: connMaxLifetime,
		DBConnMaxIdleTime: connMaxIdleTime,
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.APITimeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	switch c.Platform {
	case "native", "web":
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("storage.database_url is required for the postgres driver")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return errors.New("storage.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	return nil
}
