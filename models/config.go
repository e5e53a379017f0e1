package models

import "time"

// PipelineConfig is the immutable configuration of one sync pipeline.
// It is built once by config.Load and passed explicitly to every component.
type PipelineConfig struct {
	Token          string `json:"-" mapstructure:"discord_token"`
	ForumChannelID string `json:"forum_channel_id" mapstructure:"forum_channel_id"`
	APIBaseURL     string `json:"api_base_url" mapstructure:"api_base_url"`

	MaxThreadsTotal int `json:"max_threads_total" mapstructure:"max_threads_total"`
	MaxArchived     int `json:"max_archived" mapstructure:"max_archived"`
	MaxPosts        int `json:"max_posts" mapstructure:"max_posts"`
	MessageWindow   int `json:"message_window" mapstructure:"message_window"`

	// ThreadIDAsStarter treats the thread id as the starter message id when the
	// listing carries none. Forum starter messages share the id of their thread.
	ThreadIDAsStarter bool `json:"thread_id_as_starter" mapstructure:"thread_id_as_starter"`

	Channel ChannelIdentity `json:"channel" mapstructure:",squash"`

	OutputFile   string `json:"output_file" mapstructure:"output_file"`
	OutputBucket string `json:"output_bucket" mapstructure:"output_bucket"`

	RequestsPerSecond float64       `json:"requests_per_second" mapstructure:"requests_per_second"`
	RetryAttempts     int           `json:"retry_attempts" mapstructure:"retry_attempts"`
	RequestTimeout    time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	Workers           int           `json:"workers" mapstructure:"workers"`

	HistoryDB            string `json:"history_db" mapstructure:"history_db"`
	HistoryRetentionDays int    `json:"history_retention_days" mapstructure:"history_retention_days"`
	Schedule             string `json:"schedule" mapstructure:"schedule"`

	LogLevel string `json:"log_level" mapstructure:"log_level"`
	LogFile  string `json:"log_file" mapstructure:"log_file"`
}

// ChannelIdentity holds the fixed channel fields stamped onto every post.
type ChannelIdentity struct {
	Name     string `json:"channel_name" mapstructure:"channel_name"`
	Verified bool   `json:"channel_verified" mapstructure:"channel_verified"`
	Avatar   string `json:"channel_avatar" mapstructure:"channel_avatar"` // empty means null
}
