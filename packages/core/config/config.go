package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcron/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcron/packages/notify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "HITCRON"

// Config represents the hitcron configuration
type Config struct {
	Database        string            `mapstructure:"database"`
	Timeout         time.Duration     `mapstructure:"timeout"` // per call
	FollowRedirects bool              `mapstructure:"follow_redirects"`
	MaxRedirects    int               `mapstructure:"max_redirects"`
	ValidateSSL     bool              `mapstructure:"validate_ssl"`
	Proxy           string            `mapstructure:"proxy"`
	Headers         map[string]string `mapstructure:"headers"` // Default headers for all requests
	LogLevel        string            `mapstructure:"log_level"`
	Timezone        string            `mapstructure:"timezone"`
	HTTP            HTTPConfig        `mapstructure:"http"`
	SMTP            SMTPConfig        `mapstructure:"smtp"`
	Redis           RedisConfig       `mapstructure:"redis"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type SMTPConfig struct {
	Host          string  `mapstructure:"host"`
	Port          int     `mapstructure:"port"`
	Username      string  `mapstructure:"username"`
	Password      string  `mapstructure:"password"`
	From          string  `mapstructure:"from"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	NotifyOn      string  `mapstructure:"notify_on"`
}

// RedisConfig enables the shared firing lease when URL is set
type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// ConfigName is the base name searched for when no explicit path is given
const ConfigName = "hitcron"

// LoadConfig loads configuration from the specified path or searches the
// working directory for hitcron.{yaml,yml,json}. A missing search result is
// not an error; a missing explicit path is.
func LoadConfig(path string) (*Config, error) {
	return load(path, ".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	return load("", dir)
}

func load(path, dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed by the decoder alone
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s: must be positive", c.Timeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("invalid max_redirects %d", c.MaxRedirects)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := notify.ParseNotifyOn(c.SMTP.NotifyOn); err != nil {
		return err
	}
	return nil
}

// Location resolves the timezone cron expressions are evaluated in
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level parses log_level, defaulting to info
func (c *Config) Level() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// RunnerConfig converts the HTTP settings for the batch runner
func (c *Config) RunnerConfig(log logrus.FieldLogger) *runner.Config {
	return &runner.Config{
		Timeout:        c.Timeout,
		FollowRedirect: c.FollowRedirects,
		MaxRedirects:   c.MaxRedirects,
		ValidateSSL:    c.ValidateSSL,
		Proxy:          c.Proxy,
		DefaultHeaders: c.Headers,
		Logger:         log,
	}
}

// SMTPEnabled reports whether report emails can be delivered
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.From != ""
}

func (c *Config) MailerConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:          c.SMTP.Host,
		Port:          c.SMTP.Port,
		Username:      c.SMTP.Username,
		Password:      c.SMTP.Password,
		From:          c.SMTP.From,
		RatePerSecond: c.SMTP.RatePerSecond,
	}
}
