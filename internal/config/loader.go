package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "SCIBOT"
	envConfigDefaultPath = "SCIBOT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("bot_name", cfg.BotName)
	v.SetDefault("history_limit", cfg.HistoryLimit)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)

	v.SetDefault("relay.serialize_threads", cfg.Relay.SerializeThreads)
	v.SetDefault("relay.rate_limit_per_minute", cfg.Relay.RateLimitPerMinute)
	v.SetDefault("relay.max_message_bytes", cfg.Relay.MaxMessageBytes)

	v.SetDefault("responder.mode", cfg.Responder.Mode)
	v.SetDefault("responder.command", cfg.Responder.Command)
	v.SetDefault("responder.args", cfg.Responder.Args)
	v.SetDefault("responder.workdir", cfg.Responder.Workdir)
	v.SetDefault("responder.url", cfg.Responder.URL)
	v.SetDefault("responder.api_key", cfg.Responder.APIKey)
	v.SetDefault("responder.timeout", cfg.Responder.Timeout)
}

// Validate checks values that would otherwise fail at request time.
func (c Config) Validate() error {
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	if c.Responder.Timeout <= 0 {
		return fmt.Errorf("responder.timeout must be positive, got %s", c.Responder.Timeout)
	}
	switch c.Responder.Mode {
	case ResponderModeExec:
		if c.Responder.Command == "" {
			return errors.New("responder.command is required in exec mode")
		}
	case ResponderModeHTTP:
		if c.Responder.URL == "" {
			return errors.New("responder.url is required in http mode")
		}
	default:
		return fmt.Errorf("unknown responder.mode %q", c.Responder.Mode)
	}
	return nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
