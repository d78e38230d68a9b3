// Package config loads server configuration from a YAML file with
// environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Storage   StorageConfig   `yaml:"storage"`
	Solana    SolanaConfig    `yaml:"solana"`
	Social    SocialConfig    `yaml:"social"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// DisabledTools lists tool names hidden from every turn.
	DisabledTools []string `yaml:"disabled_tools"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	JWTSecret  string `yaml:"jwt_secret"`
}

type ModelConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// Name is the primary chat model; RepairModel handles argument repair
	// and tool selection and may be smaller.
	Name        string `yaml:"name"`
	RepairModel string `yaml:"repair_model"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type SolanaConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	JupiterURL string `yaml:"jupiter_url"`
}

type SocialConfig struct {
	TwitterBearerToken string `yaml:"twitter_bearer_token"`
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	// TracingEnabled turns on OpenTelemetry span export.
	TracingEnabled bool `yaml:"tracing_enabled"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{ListenAddr: ":8080"},
		Model: ModelConfig{
			Name:        "gpt-4o",
			RepairModel: "gpt-4o-mini",
		},
		Storage: StorageConfig{DBPath: "neur.db"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the config file (if path is non-empty) and applies environment
// overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Split out so
// tests can drive it with a stub lookup.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	setString("NEUR_LISTEN_ADDR", &cfg.Server.ListenAddr)
	setString("NEUR_JWT_SECRET", &cfg.Server.JWTSecret)
	setString("OPENAI_API_KEY", &cfg.Model.APIKey)
	setString("OPENAI_BASE_URL", &cfg.Model.BaseURL)
	setString("NEUR_MODEL", &cfg.Model.Name)
	setString("NEUR_REPAIR_MODEL", &cfg.Model.RepairModel)
	setString("NEUR_DB_PATH", &cfg.Storage.DBPath)
	setString("SOLANA_RPC_URL", &cfg.Solana.RPCURL)
	setString("JUPITER_API_URL", &cfg.Solana.JupiterURL)
	setString("TWITTER_BEARER_TOKEN", &cfg.Social.TwitterBearerToken)
	setString("NEUR_LOG_DIR", &cfg.Logging.Dir)
	setString("NEUR_LOG_LEVEL", &cfg.Logging.Level)

	if v, ok := lookup("NEUR_TRACING"); ok && v != "" {
		cfg.Telemetry.TracingEnabled = v == "1" || v == "true"
	}

	// NEUR_DISABLED_TOOLS is a JSON array of tool names. A malformed value
	// is ignored rather than failing startup.
	if v, ok := lookup("NEUR_DISABLED_TOOLS"); ok && v != "" {
		var names []string
		if err := json.Unmarshal([]byte(v), &names); err == nil {
			cfg.DisabledTools = names
		}
	}
}

// Validate checks that required settings are present.
func (c Config) Validate() error {
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required (NEUR_JWT_SECRET)")
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("model api key is required (OPENAI_API_KEY)")
	}
	return nil
}
