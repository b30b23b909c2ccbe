// Package config loads the rootcause configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable pointing to the configuration file.
const EnvPath = "ROOTCAUSE_CONFIG"

// DefaultPath is read when neither a flag nor EnvPath name a file.
const DefaultPath = "rootcause.yaml"

var validate = validator.New()

// Config is the structure of rootcause.yaml.
type Config struct {
	Engine    EngineConfig   `yaml:"engine"`
	Log       LogConfig      `yaml:"log"`
	HTTP      HTTPConfig     `yaml:"http"`
	Results   ResultsConfig  `yaml:"results"`
	Variables map[string]any `yaml:"variables"`
}

// EngineConfig sizes the session pool and selects its policies.
type EngineConfig struct {
	Workers         int           `yaml:"workers" validate:"gte=1"`
	Exhaustion      string        `yaml:"exhaustion" validate:"oneof=block fail_fast"`
	MalformedInputs string        `yaml:"malformed_inputs" validate:"oneof=skip fail"`
	Timeout         time.Duration `yaml:"timeout" validate:"gte=0"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// ResultsConfig selects where diagnosis results are persisted.
type ResultsConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=memory redis file"`
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
	// EncryptionKey seals stored records with AES-256 (hex or base64, 32 bytes).
	EncryptionKey string `yaml:"encryption_key"`
	// Redact lists patterns of result fields masked before storage.
	Redact []string `yaml:"redact"`
}

// RedisConfig configures the redis result store.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Workers:         4,
			Exhaustion:      "block",
			MalformedInputs: "skip",
			Timeout:         30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Results: ResultsConfig{
			Backend: "memory",
			Dir:     ".rootcause/results",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "rootcause:result:",
			},
		},
	}
}

// Resolve picks the configuration path: the explicit path, then EnvPath,
// then DefaultPath.
func Resolve(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads the file over the defaults and validates the result.
// A missing file yields the defaults unless required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Results.Backend == "redis" && c.Results.Redis.Addr == "" {
		return errors.New("invalid config: results.redis.addr is required for the redis backend")
	}
	if c.Results.Backend == "file" && c.Results.Dir == "" {
		return errors.New("invalid config: results.dir is required for the file backend")
	}
	return nil
}
