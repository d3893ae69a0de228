// Package config loads runtime settings from an optional YAML file and the
// environment. Environment variables win, so deployments configure
// everything through env while local development can keep a config.yaml.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is everything the binaries need to wire themselves up.
type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	HTTPAddr    string `mapstructure:"http_addr"`

	LLM struct {
		// Provider selects the completion backend: "gemini" or "openai".
		Provider     string `mapstructure:"provider"`
		GeminiAPIKey string `mapstructure:"gemini_api_key"`
		GeminiModel  string `mapstructure:"gemini_model"`
		OpenAIAPIKey string `mapstructure:"openai_api_key"`
		OpenAIModel  string `mapstructure:"openai_model"`
	} `mapstructure:"llm"`

	Aggregator struct {
		// Env selects the provider environment: "sandbox" or "production".
		// An empty ClientID switches the server to the built-in fake,
		// for development without provider credentials.
		Env      string `mapstructure:"env"`
		ClientID string `mapstructure:"client_id"`
		Secret   string `mapstructure:"secret"`
		BaseURL  string `mapstructure:"base_url"`
	} `mapstructure:"aggregator"`

	Archive struct {
		// Bucket, when set, enables upload archival to Cloud Storage.
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"archive"`

	Jobs struct {
		Workers int `mapstructure:"workers"`
		Buffer  int `mapstructure:"buffer"`
	} `mapstructure:"jobs"`
}

// Load reads config.yaml (if present) and the environment. Env keys are the
// upper-cased, underscore-joined paths: LLM_PROVIDER, AGGREGATOR_SECRET,
// DATABASE_URL.
func Load() (Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("aggregator.env", "sandbox")
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.buffer", 16)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	// AutomaticEnv only resolves keys viper has seen, so bind the ones
	// that may come exclusively from the environment.
	for _, key := range []string{
		"database_url",
		"http_addr",
		"llm.provider", "llm.gemini_api_key", "llm.gemini_model",
		"llm.openai_api_key", "llm.openai_model",
		"aggregator.env", "aggregator.client_id", "aggregator.secret", "aggregator.base_url",
		"archive.bucket",
		"jobs.workers", "jobs.buffer",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a server cannot start without.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q (want gemini or openai)", c.LLM.Provider)
	}
	return nil
}
