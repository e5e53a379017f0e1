package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"forum-sync/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAPIBaseURL is the Discord REST root used when none is configured.
const DefaultAPIBaseURL = "https://discord.com/api/v10"

// ConfigurationError reports required settings that are missing or invalid.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

var defaults = map[string]any{
	"discord_token":          "",
	"forum_channel_id":       "",
	"api_base_url":           DefaultAPIBaseURL,
	"max_threads_total":      500,
	"max_archived":           500,
	"max_posts":              500,
	"message_window":         100,
	"thread_id_as_starter":   false,
	"channel_name":           "🅲🅽🅽-breaking-bad-news📰",
	"channel_verified":       true,
	"channel_avatar":         "",
	"output_file":            "posts.json",
	"output_bucket":          "",
	"requests_per_second":    5.0,
	"retry_attempts":         4,
	"request_timeout":        30 * time.Second,
	"workers":                1,
	"history_db":             "",
	"history_retention_days": 31,
	"schedule":               "@hourly",
	"log_level":              "info",
	"log_file":               "",
}

// Load builds the pipeline configuration. Sources, highest precedence first:
// process environment, .env file, config.yaml (configFile if set, otherwise
// ./config.yaml), built-in defaults.
func Load(configFile string) (*models.PipelineConfig, error) {
	// A missing .env is normal; godotenv never overrides variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg models.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the pipeline cannot run without.
func Validate(cfg *models.PipelineConfig) error {
	cfgErr := &ConfigurationError{}
	if strings.TrimSpace(cfg.Token) == "" {
		cfgErr.Missing = append(cfgErr.Missing, "DISCORD_TOKEN")
	}
	if strings.TrimSpace(cfg.ForumChannelID) == "" {
		cfgErr.Missing = append(cfgErr.Missing, "FORUM_CHANNEL_ID")
	}

	// MAX_ARCHIVED may be zero to skip the archived listing entirely.
	if cfg.MaxArchived < 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "MAX_ARCHIVED")
	}
	if cfg.MaxThreadsTotal <= 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "MAX_THREADS_TOTAL")
	}
	if cfg.MaxPosts <= 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "MAX_POSTS")
	}
	if cfg.MessageWindow <= 0 || cfg.MessageWindow > 100 {
		cfgErr.Invalid = append(cfgErr.Invalid, "MESSAGE_WINDOW")
	}
	if cfg.Workers <= 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "WORKERS")
	}
	if cfg.RequestsPerSecond <= 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "REQUESTS_PER_SECOND")
	}
	if cfg.OutputFile == "" {
		cfgErr.Missing = append(cfgErr.Missing, "OUTPUT_FILE")
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return cfgErr
	}
	return nil
}
