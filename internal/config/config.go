package config

import "time"

// Responder modes.
const (
	ResponderModeExec = "exec"
	ResponderModeHTTP = "http"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	BotName           string        `mapstructure:"bot_name" yaml:"bot_name"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	Relay     RelayConfig     `mapstructure:"relay" yaml:"relay"`
	Responder ResponderConfig `mapstructure:"responder" yaml:"responder"`
}

// RelayConfig tunes the relay endpoint.
type RelayConfig struct {
	SerializeThreads   bool  `mapstructure:"serialize_threads" yaml:"serialize_threads"`
	RateLimitPerMinute int   `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MaxMessageBytes    int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
}

// ResponderConfig selects and configures the reply generator.
type ResponderConfig struct {
	Mode    string        `mapstructure:"mode" yaml:"mode"`
	Command string        `mapstructure:"command" yaml:"command"`
	Args    []string      `mapstructure:"args" yaml:"args"`
	Workdir string        `mapstructure:"workdir" yaml:"workdir"`
	URL     string        `mapstructure:"url" yaml:"url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "scibot.db",
		BotName:           "CFNBot",
		HistoryLimit:      100,
		Relay: RelayConfig{
			SerializeThreads:   true,
			RateLimitPerMinute: 30,
			MaxMessageBytes:    64 << 10,
		},
		Responder: ResponderConfig{
			Mode:    ResponderModeExec,
			Command: "python3",
			Args:    []string{"response.py"},
			Timeout: 120 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.BotName != "" {
		c.BotName = other.BotName
	}
	if other.Responder.Mode != "" {
		c.Responder.Mode = other.Responder.Mode
	}
	if other.Responder.URL != "" {
		c.Responder.URL = other.Responder.URL
	}
	if other.Responder.Timeout != 0 {
		c.Responder.Timeout = other.Responder.Timeout
	}
}
