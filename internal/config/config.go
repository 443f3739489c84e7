// Package config holds the process configuration and maps a workspace
// identity to its storage location.
//
// A Config is built once at startup and passed by value afterwards; nothing
// in the package keeps process-wide state.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "CONPORT"

// Config is the startup configuration.
type Config struct {
	// DBPath overrides the store location. Absolute paths are used verbatim,
	// relative ones are resolved against the workspace.
	DBPath string `mapstructure:"db_path"`
	// WorkspaceID is the identity used when a call does not name one.
	WorkspaceID string `mapstructure:"workspace_id"`
	// AutoDetect permits workspace detection when no identity is given.
	AutoDetect bool `mapstructure:"auto_detect"`
	// RequireIndicator disables falling back to the start directory.
	RequireIndicator bool `mapstructure:"require_indicator"`
	// StartDir is where detection begins. Empty means the working directory.
	StartDir string `mapstructure:"start_dir"`

	Mode     string `mapstructure:"mode"`
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// BearerToken guards the http endpoint when set.
	BearerToken   string `mapstructure:"bearer_token"`
	ResourceURL   string `mapstructure:"resource_url"`
	AuthServerURL string `mapstructure:"auth_server_url"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		AutoDetect: true,
		Mode:       "stdio",
		Port:       "8081",
		LogLevel:   "info",
	}
}

// SetDefaults registers Default on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("workspace_id", d.WorkspaceID)
	v.SetDefault("auto_detect", d.AutoDetect)
	v.SetDefault("require_indicator", d.RequireIndicator)
	v.SetDefault("start_dir", d.StartDir)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("port", d.Port)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("bearer_token", d.BearerToken)
	v.SetDefault("resource_url", d.ResourceURL)
	v.SetDefault("auth_server_url", d.AuthServerURL)
}

// Load reads the configuration from v: an optional config file, CONPORT_*
// environment variables and whatever flags the caller bound.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("unknown mode %q (use stdio or http)", c.Mode)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.AuthServerURL != "" && c.ResourceURL == "" {
		return fmt.Errorf("auth_server_url needs resource_url")
	}
	return nil
}
