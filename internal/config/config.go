package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr" toml:"addr"`
		CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins"`
		Debug       bool     `yaml:"debug" toml:"debug"`
	} `yaml:"server" toml:"server"`
	Vault struct {
		InitialGrant    float64       `yaml:"initial_grant" toml:"initial_grant"`
		Acceleration    float64       `yaml:"acceleration" toml:"acceleration"`
		RefreshInterval time.Duration `yaml:"refresh_interval" toml:"refresh_interval"`
	} `yaml:"vault" toml:"vault"`
	Storage struct {
		Driver        string `yaml:"driver" toml:"driver"`
		FilePath      string `yaml:"file_path" toml:"file_path"`
		SQLitePath    string `yaml:"sqlite_path" toml:"sqlite_path"`
		RedisAddr     string `yaml:"redis_addr" toml:"redis_addr"`
		RedisPassword string `yaml:"redis_password" toml:"redis_password"`
		RedisDB       int    `yaml:"redis_db" toml:"redis_db"`
		RedisPrefix   string `yaml:"redis_prefix" toml:"redis_prefix"`
	} `yaml:"storage" toml:"storage"`
	Strategies struct {
		SourceURL string `yaml:"source_url" toml:"source_url"`
		APIKey    string `yaml:"api_key" toml:"api_key"`
	} `yaml:"strategies" toml:"strategies"`
	Live struct {
		Provider      string  `yaml:"provider" toml:"provider"`
		SeedBalance   float64 `yaml:"seed_balance" toml:"seed_balance"`
		PricePerShare float64 `yaml:"price_per_share" toml:"price_per_share"`
	} `yaml:"live" toml:"live"`
	Proxy string `yaml:"proxy" toml:"proxy"`
}

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Load reads config from a YAML or TOML file (by extension), then applies
// environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		// toml decodes durations from strings like "5s"
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("INITIAL_GRANT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vault.InitialGrant = f
		}
	}
	if v := os.Getenv("ACCELERATION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vault.Acceleration = f
		}
	}
	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Vault.RefreshInterval = d
		}
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.RedisPassword = v
	}
	if v := os.Getenv("STRATEGY_SOURCE_URL"); v != "" {
		cfg.Strategies.SourceURL = v
	}
	if v := os.Getenv("STRATEGY_API_KEY"); v != "" {
		cfg.Strategies.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Vault.InitialGrant == 0 {
		cfg.Vault.InitialGrant = 1000
	}
	if cfg.Vault.Acceleration == 0 {
		cfg.Vault.Acceleration = 3600
	}
	if cfg.Vault.RefreshInterval == 0 {
		cfg.Vault.RefreshInterval = 5 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.FilePath == "" {
		cfg.Storage.FilePath = "data/vault_state.json"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/yield_harbor.db"
	}
	if cfg.Storage.RedisPrefix == "" {
		cfg.Storage.RedisPrefix = "yieldharbor:"
	}
	if cfg.Live.Provider == "" {
		cfg.Live.Provider = "memory"
	}
	if cfg.Live.SeedBalance == 0 {
		cfg.Live.SeedBalance = 1000
	}
	if cfg.Live.PricePerShare == 0 {
		cfg.Live.PricePerShare = 1
	}
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if c.Vault.InitialGrant < 0 {
		return fmt.Errorf("vault.initial_grant must not be negative")
	}
	if c.Vault.Acceleration <= 0 {
		return fmt.Errorf("vault.acceleration must be positive")
	}
	if c.Vault.RefreshInterval < time.Second {
		return fmt.Errorf("vault.refresh_interval must be at least 1s")
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite:
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Live.Provider != "memory" {
		return fmt.Errorf("unknown live.provider %q", c.Live.Provider)
	}
	if c.Live.PricePerShare <= 0 {
		return fmt.Errorf("live.price_per_share must be positive")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
