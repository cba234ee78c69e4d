package config

import "time"

const (
	DefaultDatabase     = "sqlite://hitcron.db"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 10
	DefaultHTTPAddr     = ":8080"
	DefaultSMTPPort     = 587
	DefaultLockTTL      = 5 * time.Minute
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Database:        DefaultDatabase,
		Timeout:         DefaultTimeout,
		FollowRedirects: true,
		MaxRedirects:    DefaultMaxRedirects,
		ValidateSSL:     true,
		LogLevel:        "info",
		Timezone:        "UTC",
		HTTP: HTTPConfig{
			Addr: DefaultHTTPAddr,
		},
		SMTP: SMTPConfig{
			Port:          DefaultSMTPPort,
			RatePerSecond: 1,
			NotifyOn:      "always",
		},
		Redis: RedisConfig{
			LockTTL: DefaultLockTTL,
		},
	}
}

// setDefaults registers every key so that env overrides apply to keys absent from the file
func setDefaults(v viperSetter) {
	d := DefaultConfig()
	v.SetDefault("database", d.Database)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("follow_redirects", d.FollowRedirects)
	v.SetDefault("max_redirects", d.MaxRedirects)
	v.SetDefault("validate_ssl", d.ValidateSSL)
	v.SetDefault("proxy", d.Proxy)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("smtp.host", d.SMTP.Host)
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.username", d.SMTP.Username)
	v.SetDefault("smtp.password", d.SMTP.Password)
	v.SetDefault("smtp.from", d.SMTP.From)
	v.SetDefault("smtp.rate_per_second", d.SMTP.RatePerSecond)
	v.SetDefault("smtp.notify_on", d.SMTP.NotifyOn)
	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.lock_ttl", d.Redis.LockTTL)
}

type viperSetter interface {
	SetDefault(key string, value any)
}
