package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NATS      NATSConfig      `yaml:"nats"`
	Store     StoreConfig     `yaml:"store"`
	Web       WebConfig       `yaml:"web"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Vault     VaultConfig     `yaml:"vault"`

	// Providers maps a provider name to its invocation settings. API keys may
	// be literal or "secret:<name>" references resolved through the vault.
	Providers map[string]ProviderConfig `yaml:"providers"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// AnalysisConfig carries the run limits applied when a preset does not
// override them.
type AnalysisConfig struct {
	PresetsPath         string        `yaml:"presets_path"`
	MaxConcurrentAgents int           `yaml:"max_concurrent_agents"`
	PerAgentTimeout     time.Duration `yaml:"per_agent_timeout"`
	FallbackTimeout     time.Duration `yaml:"fallback_timeout"`
	FallbackEnabled     bool          `yaml:"fallback_enabled"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

func defaults() Config {
	return Config{
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/conclave.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
		Analysis: AnalysisConfig{
			MaxConcurrentAgents: 4,
			PerAgentTimeout:     5 * time.Minute,
			FallbackTimeout:     2 * time.Minute,
			FallbackEnabled:     true,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CONCLAVE_CONFIG")
	if path == "" {
		path = "config/conclave.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONCLAVE_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("CONCLAVE_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("CONCLAVE_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("CONCLAVE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CONCLAVE_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
	if v := os.Getenv("CONCLAVE_PRESETS"); v != "" {
		cfg.Analysis.PresetsPath = v
	}
}
