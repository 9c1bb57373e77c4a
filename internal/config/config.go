package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Image    ImageConfig    `mapstructure:"image"`
	Features FeatureConfig  `mapstructure:"features"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Media    MediaConfig    `mapstructure:"media" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
	LogFormat string `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

// AuthConfig holds the shared secret used to verify admin bearer tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// Provider names accepted by llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// LLMConfig selects the active text provider and holds per-provider settings.
// Credentials may be empty here; a missing credential surfaces when a task runs.
type LLMConfig struct {
	Provider string           `mapstructure:"provider" validate:"required,oneof=openai gemini ollama"`
	OpenAI   ProviderSettings `mapstructure:"openai"`
	Gemini   ProviderSettings `mapstructure:"gemini"`
	Ollama   ProviderSettings `mapstructure:"ollama"`
}

// ProviderSettings is the connection information of one provider.
type ProviderSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
	Model    string `mapstructure:"model"`
}

// ImageConfig configures the image generation provider.
type ImageConfig struct {
	// APIKey falls back to the Gemini text key when empty.
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	AspectRatio   string `mapstructure:"aspect_ratio" validate:"omitempty,oneof=1:1 3:4 4:3 9:16 16:9"`
	RatePerMinute int    `mapstructure:"rate_per_minute" validate:"gte=0"`
}

// FeatureConfig toggles optional pipeline steps.
type FeatureConfig struct {
	AutoPublish  bool `mapstructure:"auto_publish"`
	InlineImages bool `mapstructure:"inline_images"`
	AutoImage    bool `mapstructure:"auto_image"`
	AutoSEO      bool `mapstructure:"auto_seo"`
}

// QueueConfig holds the retry state machine parameters.
type QueueConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"gte=1"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
	RearmDelay    time.Duration `mapstructure:"rearm_delay" validate:"gt=0"`
	StuckAfter    time.Duration `mapstructure:"stuck_after" validate:"gt=0"`
	RetentionDays int           `mapstructure:"retention_days" validate:"gte=1"`
}

// Schedule frequencies.
const (
	FrequencyHourly     = "hourly"
	FrequencyTwiceDaily = "twicedaily"
	FrequencyDaily      = "daily"
	FrequencyWeekly     = "weekly"
	FrequencyNone       = "none"
)

// ScheduleConfig controls the recurring generation trigger.
type ScheduleConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Frequency string `mapstructure:"frequency" validate:"omitempty,oneof=hourly twicedaily daily weekly none"`
}

// MediaConfig configures the local blob store for generated images.
type MediaConfig struct {
	Dir     string `mapstructure:"dir" validate:"required"`
	BaseURL string `mapstructure:"base_url" validate:"required"`
}
