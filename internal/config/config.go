// Package config loads server settings from an optional YAML file followed by
// MARKETPLACE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "MARKETPLACE_"

const (
	StorageMemory = "memory"
	StoragePebble = "pebble"
	StorageMySQL  = "mysql"
	StorageRedis  = "redis"

	EventsLog   = "log"
	EventsKafka = "kafka"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	GRPC        GRPCConfig        `yaml:"grpc"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Storage     StorageConfig     `yaml:"storage"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Events      EventsConfig      `yaml:"events"`
	Log         LogConfig         `yaml:"log"`
	Dev         DevConfig         `yaml:"dev"`
}

type HTTPConfig struct {
	Addr            string          `yaml:"addr"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig is a per-client token bucket. A zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type MarketplaceConfig struct {
	// Operator is the account owners approve so the marketplace can move sold assets.
	Operator string `yaml:"operator"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver"`
	PebbleDir string `yaml:"pebble_dir"`
	MySQLDSN  string `yaml:"mysql_dsn"`
	RedisAddr string `yaml:"redis_addr"`
}

type IdempotencyConfig struct {
	Driver string        `yaml:"driver"`
	TTL    time.Duration `yaml:"ttl"`
}

type EventsConfig struct {
	Driver       string   `yaml:"driver"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type DevConfig struct {
	// Enabled mounts the /dev routes for minting assets and inspecting wallets.
	Enabled bool `yaml:"enabled"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
			RateLimit:       RateLimitConfig{RPS: 100, Burst: 200},
		},
		GRPC:        GRPCConfig{Addr: ":50051"},
		Marketplace: MarketplaceConfig{Operator: "0xmarketplace"},
		Storage: StorageConfig{
			Driver:    StorageMemory,
			PebbleDir: "data/ledger",
			MySQLDSN:  "root:root@tcp(localhost:3306)/marketplace?parseTime=true",
			RedisAddr: "localhost:6379",
		},
		Idempotency: IdempotencyConfig{Driver: StorageMemory, TTL: 24 * time.Hour},
		Events: EventsConfig{
			Driver:       EventsLog,
			KafkaBrokers: []string{"localhost:9092"},
			KafkaTopic:   "marketplace.events",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	ApplyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ApplyEnvOverrides(cfg *Config) {
	cfg.HTTP.Addr = envStringWithFallback("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.ShutdownTimeout = envDurationWithFallback("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	cfg.HTTP.RateLimit.RPS = envFloatWithFallback("RATE_LIMIT_RPS", cfg.HTTP.RateLimit.RPS)
	cfg.HTTP.RateLimit.Burst = envIntWithFallback("RATE_LIMIT_BURST", cfg.HTTP.RateLimit.Burst)
	cfg.GRPC.Addr = envStringWithFallback("GRPC_ADDR", cfg.GRPC.Addr)
	cfg.Marketplace.Operator = envStringWithFallback("OPERATOR", cfg.Marketplace.Operator)

	cfg.Storage.Driver = envStringWithFallback("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.PebbleDir = envStringWithFallback("PEBBLE_DIR", cfg.Storage.PebbleDir)
	cfg.Storage.MySQLDSN = envStringWithFallback("MYSQL_DSN", cfg.Storage.MySQLDSN)
	cfg.Storage.RedisAddr = envStringWithFallback("REDIS_ADDR", cfg.Storage.RedisAddr)

	cfg.Idempotency.Driver = envStringWithFallback("IDEMPOTENCY_DRIVER", cfg.Idempotency.Driver)
	cfg.Idempotency.TTL = envDurationWithFallback("IDEMPOTENCY_TTL", cfg.Idempotency.TTL)

	cfg.Events.Driver = envStringWithFallback("EVENTS_DRIVER", cfg.Events.Driver)
	if brokers := envCSV("KAFKA_BROKERS"); brokers != nil {
		cfg.Events.KafkaBrokers = brokers
	}
	cfg.Events.KafkaTopic = envStringWithFallback("KAFKA_TOPIC", cfg.Events.KafkaTopic)

	cfg.Log.Level = envStringWithFallback("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Development = envBoolWithFallback("LOG_DEVELOPMENT", cfg.Log.Development)
	cfg.Dev.Enabled = envBoolWithFallback("DEV_ENABLED", cfg.Dev.Enabled)
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if strings.TrimSpace(c.GRPC.Addr) == "" {
		errs = append(errs, errors.New("grpc.addr is required"))
	}
	if c.HTTP.RateLimit.RPS < 0 || (c.HTTP.RateLimit.RPS > 0 && c.HTTP.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("http.rate_limit needs rps >= 0 and burst >= 1 when enabled"))
	}
	if strings.TrimSpace(c.Marketplace.Operator) == "" {
		errs = append(errs, errors.New("marketplace.operator is required"))
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePebble:
		if c.Storage.PebbleDir == "" {
			errs = append(errs, errors.New("storage.pebble_dir is required for pebble"))
		}
	case StorageMySQL:
		if c.Storage.MySQLDSN == "" {
			errs = append(errs, errors.New("storage.mysql_dsn is required for mysql"))
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch c.Idempotency.Driver {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for redis idempotency"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown idempotency.driver %q", c.Idempotency.Driver))
	}
	if c.Idempotency.TTL <= 0 {
		errs = append(errs, errors.New("idempotency.ttl must be positive"))
	}

	switch c.Events.Driver {
	case EventsLog:
	case EventsKafka:
		if len(c.Events.KafkaBrokers) == 0 || c.Events.KafkaTopic == "" {
			errs = append(errs, errors.New("events.kafka_brokers and events.kafka_topic are required for kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events.driver %q", c.Events.Driver))
	}

	return errors.Join(errs...)
}
