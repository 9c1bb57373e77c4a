package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. QUILL_SERVER_PORT.
const EnvPrefix = "QUILL"

var defaults = map[string]any{
	"server.port":               8080,
	"server.log_level":          "info",
	"server.log_format":         "json",
	"database.url":              "",
	"database.max_open_conns":   10,
	"auth.jwt_secret":           "",
	"llm.provider":              ProviderOpenAI,
	"llm.openai.api_key":        "",
	"llm.openai.endpoint":       "https://api.openai.com/v1/chat/completions",
	"llm.openai.model":          "gpt-3.5-turbo",
	"llm.gemini.api_key":        "",
	"llm.gemini.endpoint":       "",
	"llm.gemini.model":          "gemini-1.5-flash",
	"llm.ollama.api_key":        "",
	"llm.ollama.endpoint":       "http://localhost:11434/api/generate",
	"llm.ollama.model":          "llama2",
	"image.api_key":             "",
	"image.model":               "imagen-3.0-generate-001",
	"image.aspect_ratio":        "16:9",
	"image.rate_per_minute":     10,
	"features.auto_publish":     false,
	"features.inline_images":    false,
	"features.auto_image":       false,
	"features.auto_seo":         false,
	"queue.max_attempts":        3,
	"queue.retry_delay":         "5m",
	"queue.rearm_delay":         "10s",
	"queue.stuck_after":         "1h",
	"queue.retention_days":      7,
	"schedule.enabled":          false,
	"schedule.frequency":        FrequencyDaily,
	"media.dir":                 "./media",
	"media.base_url":            "/media",
}

// Load configuration from environment variables and optionally a config file
// named config.{yaml,json,toml} in the working directory.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Every key needs a default so AutomaticEnv can resolve it during Unmarshal.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
