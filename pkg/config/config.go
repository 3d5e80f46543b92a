// Package config provides configuration loading for Yggdrasil.
//
// Configuration is resolved in three layers, lowest precedence first:
//
//  1. Defaults (DefaultConfig)
//  2. YAML file (LoadFromFile)
//  3. Environment variables (ApplyEnvVars, YGG_* keys)
//
// so a deploy can ship a config file and still override single values per
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage engine names accepted by Storage.Engine.
const (
	EngineMemory = "memory"
	EngineBadger = "badger"
)

// Embedder names accepted by Embedding.Provider.
const (
	EmbedderNone   = "none"
	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"
)

// StorageConfig selects and tunes the backing stores.
type StorageConfig struct {
	// Engine is "memory" or "badger".
	Engine string `yaml:"engine"`
	// DataDir is the root directory for persistent stores. The graph store
	// and each vector index get their own subdirectory.
	DataDir string `yaml:"data_dir"`
}

// EmbeddingConfig selects the embedder used for vector records and queries.
type EmbeddingConfig struct {
	// Provider is "none", "hash", or "openai".
	Provider string `yaml:"provider"`
	// Model is the embedding model name (openai provider only).
	Model string `yaml:"model"`
	// Dimensions is the vector width.
	Dimensions int `yaml:"dimensions"`
	// APIKey authenticates against the provider. Prefer setting it via the
	// YGG_OPENAI_API_KEY or OPENAI_API_KEY environment variables.
	APIKey string `yaml:"api_key"`
	// RequestTimeout bounds a single embedding call from the CLI.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LoggingConfig controls the zap logger built by pkg/logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Config is the root configuration object.
type Config struct {
	// Namespace is the knowledge-base identifier prefixed onto every store
	// key, isolating tenants over shared store infrastructure.
	Namespace string          `yaml:"namespace"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DefaultConfig returns the configuration used when nothing is specified:
// an in-memory knowledge base under the "default" namespace with the
// deterministic hash embedder, so everything works with no external services.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "default",
		Storage: StorageConfig{
			Engine:  EngineMemory,
			DataDir: "./data",
		},
		Embedding: EmbeddingConfig{
			Provider:       EmbedderHash,
			Dimensions:     256,
			RequestTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile reads a YAML config file over the defaults and applies
// environment overrides on top.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	ApplyEnvVars(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load returns the default configuration with environment overrides applied.
// Used when no config file is present.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	ApplyEnvVars(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvVars overrides config fields from YGG_* environment variables.
func ApplyEnvVars(cfg *Config) {
	cfg.Namespace = getEnv("YGG_NAMESPACE", cfg.Namespace)
	cfg.Storage.Engine = getEnv("YGG_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataDir = getEnv("YGG_DATA_DIR", cfg.Storage.DataDir)
	cfg.Embedding.Provider = getEnv("YGG_EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.Model = getEnv("YGG_EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimensions = getEnvInt("YGG_EMBEDDING_DIMENSIONS", cfg.Embedding.Dimensions)
	cfg.Embedding.APIKey = getEnv("YGG_OPENAI_API_KEY", getEnv("OPENAI_API_KEY", cfg.Embedding.APIKey))
	cfg.Logging.Level = getEnv("YGG_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Development = getEnvBool("YGG_LOG_DEVELOPMENT", cfg.Logging.Development)
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("config: namespace must not be empty")
	}

	switch c.Storage.Engine {
	case EngineMemory, EngineBadger:
	default:
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == EngineBadger && c.Storage.DataDir == "" {
		return fmt.Errorf("config: badger storage requires data_dir")
	}

	switch c.Embedding.Provider {
	case EmbedderNone, EmbedderHash:
	case EmbedderOpenAI:
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("config: openai embedder requires an API key")
		}
		if c.Embedding.Dimensions <= 0 {
			return fmt.Errorf("config: openai embedder requires dimensions > 0")
		}
	default:
		return fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
