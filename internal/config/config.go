// Package config loads dwgtran settings from flags, DWGTRAN_* environment
// variables, an optional dwgtran.yaml file and built-in defaults, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/valpere/dwgtran/internal/logger"
)

// EnvPrefix is prepended to every environment variable, e.g. DWGTRAN_API_URL.
const EnvPrefix = "DWGTRAN"

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 60 * time.Second
)

// Config is the resolved configuration.
type Config struct {
	APIURL            string        `mapstructure:"api_url" yaml:"api_url"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions" yaml:"allowed_extensions"`
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxPollFailures   int           `mapstructure:"max_poll_failures" yaml:"max_poll_failures"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	OutputDir         string        `mapstructure:"output_dir" yaml:"output_dir"`
	Concurrency       int           `mapstructure:"concurrency" yaml:"concurrency"`
	History           HistoryConfig `mapstructure:"history" yaml:"history"`
	Log               logger.Config `mapstructure:"log" yaml:"log"`
}

// HistoryConfig controls the local job history database.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DB      string `mapstructure:"db" yaml:"db"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"api-url":           "api_url",
	"extensions":        "allowed_extensions",
	"poll-interval":     "poll_interval",
	"max-poll-failures": "max_poll_failures",
	"timeout":           "request_timeout",
	"output-dir":        "output_dir",
	"concurrency":       "concurrency",
	"history":           "history.enabled",
	"db":                "history.db",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8000")
	v.SetDefault("allowed_extensions", []string{"dwg", "dxf"})
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("max_poll_failures", 3)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("output_dir", ".")
	v.SetDefault("concurrency", 2)
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db", "./data/dwgtran.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindFlags binds every known flag present in fs to its configuration key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes the result. An empty
// configFile searches for dwgtran.yaml in the working and home directories.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dwgtran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("api_url must not be empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url %q is not an absolute URL", c.APIURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxPollFailures < 0 {
		return fmt.Errorf("max_poll_failures must not be negative, got %d", c.MaxPollFailures)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}

	exts := 0
	for _, e := range c.AllowedExtensions {
		if strings.TrimPrefix(strings.TrimSpace(e), ".") != "" {
			exts++
		}
	}
	if exts == 0 {
		return errors.New("allowed_extensions must name at least one extension")
	}
	return nil
}
