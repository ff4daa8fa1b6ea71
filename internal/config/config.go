// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/danielolaszy/rmsnarf/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RMSNARF_REDMINE_API_KEY.
const EnvPrefix = "RMSNARF"

// DefaultFormat is the message template used when none is configured.
const DefaultFormat = "_TRACKER_ #_ID_ [_STATUS_] (_ASSIGNED_TO_) - " +
	"Priority: _PRIORITY__SEVERITY__TARGETPLATFORMRELEASE__CRLF_" +
	"_SUBJECT_ - _URL_"

// Authentication schemes accepted by redmine.auth_scheme.
const (
	AuthBasic  = "basic"
	AuthHeader = "header"
	AuthBearer = "bearer"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Redmine RedmineConfig `mapstructure:"redmine" yaml:"redmine"`
	Snarfer SnarferConfig `mapstructure:"snarfer" yaml:"snarfer"`
	Chat    ChatConfig    `mapstructure:"chat" yaml:"chat"`
}

// RedmineConfig holds tracker specific configuration.
type RedmineConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	AuthScheme     string        `mapstructure:"auth_scheme" yaml:"auth_scheme"`
	Name           string        `mapstructure:"name" yaml:"name"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// SnarferConfig holds the issue snarfer configuration.
type SnarferConfig struct {
	// Enabled is the default for channels without an entry in Channels
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Channels overrides Enabled per channel
	Channels map[string]bool `mapstructure:"channels" yaml:"channels"`
	// Timeout is the re-announcement window in seconds. Windows already
	// created keep the value they were created with.
	Timeout       int    `mapstructure:"timeout" yaml:"timeout"`
	Format        string `mapstructure:"format" yaml:"format"`
	CommandPrefix string `mapstructure:"command_prefix" yaml:"command_prefix"`
}

// ChatConfig holds the host adapter configuration.
type ChatConfig struct {
	Workers        int     `mapstructure:"workers" yaml:"workers"`
	LinesPerSecond float64 `mapstructure:"lines_per_second" yaml:"lines_per_second"`
	Burst          int     `mapstructure:"burst" yaml:"burst"`
}

// TimeoutDuration returns the re-announcement window.
func (s SnarferConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// Redacted returns a copy that is safe to print.
func (c Config) Redacted() Config {
	c.Redmine.APIKey = logging.MaskSensitive(c.Redmine.APIKey)
	return c
}

// NewViper returns a viper instance with defaults and env overrides applied.
// If path is non-empty the YAML file at path is read as well.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("redmine.url", "http://pulp.plan.io")
	v.SetDefault("redmine.api_key", "")
	v.SetDefault("redmine.auth_scheme", AuthBasic)
	v.SetDefault("redmine.name", "Redmine")
	v.SetDefault("redmine.request_timeout", 10*time.Second)
	v.SetDefault("snarfer.enabled", false)
	v.SetDefault("snarfer.channels", map[string]bool{})
	v.SetDefault("snarfer.timeout", 300)
	v.SetDefault("snarfer.format", DefaultFormat)
	v.SetDefault("snarfer.command_prefix", "@")
	v.SetDefault("chat.workers", 4)
	v.SetDefault("chat.lines_per_second", 2.0)
	v.SetDefault("chat.burst", 4)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		logging.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v, nil
}

// LoadConfig initializes and loads configuration from defaults, the optional
// config file and environment variables.
func LoadConfig(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	config.Redmine.URL = strings.TrimRight(config.Redmine.URL, "/")

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	logging.Debug("configuration loaded",
		"url", config.Redmine.URL,
		"auth_scheme", config.Redmine.AuthScheme,
		"api_key", logging.MaskSensitive(config.Redmine.APIKey),
		"timeout", config.Snarfer.Timeout)

	return config, nil
}

// ValidateConfig ensures that all configuration values are usable. Every
// problem is reported, not just the first.
func ValidateConfig(config *Config) error {
	var problems []string

	if config.Redmine.URL == "" {
		problems = append(problems, "redmine.url is required")
	} else if u, err := url.Parse(config.Redmine.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("redmine.url %q is not an http(s) URL", config.Redmine.URL))
	}

	switch config.Redmine.AuthScheme {
	case AuthBasic, AuthHeader, AuthBearer:
	default:
		problems = append(problems, fmt.Sprintf("redmine.auth_scheme %q must be one of basic, header, bearer", config.Redmine.AuthScheme))
	}

	if config.Redmine.RequestTimeout < 0 {
		problems = append(problems, "redmine.request_timeout must not be negative")
	}
	if config.Snarfer.Timeout <= 0 {
		problems = append(problems, "snarfer.timeout must be a positive number of seconds")
	}
	if config.Snarfer.Format == "" {
		problems = append(problems, "snarfer.format must not be empty")
	}
	if config.Chat.Workers < 1 {
		problems = append(problems, "chat.workers must be at least 1")
	}
	if config.Chat.LinesPerSecond < 0 {
		problems = append(problems, "chat.lines_per_second must not be negative")
	}
	if config.Chat.Burst < 1 {
		problems = append(problems, "chat.burst must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}
