package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=text json"`
	} `yaml:"log"`
	Assessment struct {
		PassThreshold int    `yaml:"passThreshold" validate:"min=0,max=100"`
		MaxAttempts   int    `yaml:"maxAttempts" validate:"min=1"`
		TimeLimit     string `yaml:"timeLimit"`
	} `yaml:"assessment"`
	Bank struct {
		TTL string `yaml:"ttl"`
	} `yaml:"bank"`
	Documents struct {
		Driver    string `yaml:"driver" validate:"oneof=memory redis postgres sqlite"`
		SQLiteDSN string `yaml:"sqliteDsn"`
	} `yaml:"documents"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Events struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"events"`
}

// Default returns the configuration used when a key is not set.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Assessment.PassThreshold = 80
	cfg.Assessment.MaxAttempts = 3
	cfg.Assessment.TimeLimit = "30m"
	cfg.Bank.TTL = "10m"
	cfg.Redis.TTL = "10m"
	cfg.Documents.Driver = "memory"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file yields
// the defaults; PORT overrides server.port.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	return cfg, cfg.Validate()
}

var validate = validator.New()

// Validate checks value ranges and the document driver.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Documents.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("invalid config: documents.driver redis needs redis.addr")
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("invalid config: documents.driver postgres needs postgres.url")
		}
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
