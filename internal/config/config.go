package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config stores all settings for the crawler daemon. Durations arrive as
// whole seconds to keep the flag surface plain.
type Config struct {
	Period           int     `mapstructure:"period"`
	Limit            int     `mapstructure:"limit"`
	Verbose          bool    `mapstructure:"verbose"`
	Path             string  `mapstructure:"path"`
	ConnectionsLimit int     `mapstructure:"connections_limit"`
	LogFile          string  `mapstructure:"log"`
	FetchTimeout     int     `mapstructure:"fetch_timeout"`
	APIRPS           float64 `mapstructure:"api_rps"`
	OpsAddr          string  `mapstructure:"ops_addr"`
	Resume           bool    `mapstructure:"resume"`
}

// Load resolves configuration from, in rising precedence: defaults,
// YCRAWLER_* environment variables, and the given command-line flags.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("period", 30)
	v.SetDefault("limit", 30)
	v.SetDefault("verbose", false)
	v.SetDefault("path", "./data")
	v.SetDefault("connections_limit", 3)
	v.SetDefault("log", "crawler.log")
	v.SetDefault("fetch_timeout", 10)
	v.SetDefault("api_rps", 10.0)
	v.SetDefault("ops_addr", "")
	v.SetDefault("resume", false)

	v.SetEnvPrefix("YCRAWLER")
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the crawler cannot run with.
func (c *Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("period must be positive, got %d", c.Period)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.ConnectionsLimit <= 0 {
		return fmt.Errorf("connections_limit must be positive, got %d", c.ConnectionsLimit)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %d", c.FetchTimeout)
	}
	if c.APIRPS < 0 {
		return fmt.Errorf("api_rps must not be negative, got %g", c.APIRPS)
	}
	if c.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	return nil
}

// PollPeriod returns the cycle interval as a duration.
func (c *Config) PollPeriod() time.Duration {
	return time.Duration(c.Period) * time.Second
}

// RequestTimeout returns the per-download timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}
