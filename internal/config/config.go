// Package config provides configuration loading for redirhunt.
// It supports a layered configuration approach with priority:
// CLI flags > environment variables (REDIRHUNT_*) > config file (~/.redirhunt.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/buemura/redirhunt/internal/scanner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all redirhunt configuration options.
type Config struct {
	Target         string        `mapstructure:"target" yaml:"target"`
	TargetFile     string        `mapstructure:"target_file" yaml:"target_file"`
	ParamsFile     string        `mapstructure:"params_file" yaml:"params_file"`
	PayloadsFile   string        `mapstructure:"payloads_file" yaml:"payloads_file"`
	ReportPath     string        `mapstructure:"report_path" yaml:"report_path"`
	ReportFormat   string        `mapstructure:"report_format" yaml:"report_format"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Delay          time.Duration `mapstructure:"delay" yaml:"delay"`
	Retries        int           `mapstructure:"retries" yaml:"retries"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay" yaml:"rate_limit_delay"`
	MaxRedirects   int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	Rate           float64       `mapstructure:"rate" yaml:"rate"`
	UserAgents     []string      `mapstructure:"user_agents" yaml:"user_agents"`
	Insecure       bool          `mapstructure:"insecure" yaml:"insecure"`
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		ParamsFile:     "params.txt",
		PayloadsFile:   "payloads.txt",
		ReportPath:     "report.txt",
		ReportFormat:   "text",
		Concurrency:    scanner.DefaultConcurrency,
		Timeout:        scanner.DefaultRequestTimeout,
		Delay:          scanner.DefaultRequestDelay,
		Retries:        scanner.DefaultMaxRetries,
		RateLimitDelay: scanner.DefaultRateLimitDelay,
		MaxRedirects:   scanner.DefaultMaxRedirects,
		UserAgents:     scanner.DefaultUserAgents,
	}
}

// Load reads configuration from ~/.redirhunt.yaml and environment variables.
// It does NOT apply CLI flag overrides; call ApplyFlags for that.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".redirhunt")
	v.SetConfigType("yaml")

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(home)
	}

	v.SetEnvPrefix("REDIRHUNT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)

	v.SetEnvPrefix("REDIRHUNT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ApplyFlags overrides config values with any CLI flags that were explicitly set.
func ApplyFlags(cfg *Config, cmd *cobra.Command) {
	flags := cmd.Flags()

	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	integer := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	duration := func(name string, dst *time.Duration) {
		if flags.Changed(name) {
			*dst, _ = flags.GetDuration(name)
		}
	}

	str("target", &cfg.Target)
	str("target-file", &cfg.TargetFile)
	str("params", &cfg.ParamsFile)
	str("payloads", &cfg.PayloadsFile)
	str("report", &cfg.ReportPath)
	str("report-format", &cfg.ReportFormat)
	integer("concurrency", &cfg.Concurrency)
	integer("retries", &cfg.Retries)
	integer("max-redirects", &cfg.MaxRedirects)
	duration("timeout", &cfg.Timeout)
	duration("delay", &cfg.Delay)
	duration("rate-limit-delay", &cfg.RateLimitDelay)

	if flags.Changed("rate") {
		cfg.Rate, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgents, _ = flags.GetStringArray("user-agent")
	}
	if flags.Changed("insecure") {
		cfg.Insecure, _ = flags.GetBool("insecure")
	}
}

// Validate rejects settings the scanner cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Delay < 0 {
		errs = append(errs, fmt.Errorf("delay must not be negative, got %s", c.Delay))
	}
	if c.RateLimitDelay < 0 {
		errs = append(errs, fmt.Errorf("rate limit delay must not be negative, got %s", c.RateLimitDelay))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate must not be negative, got %g", c.Rate))
	}
	if len(c.UserAgents) == 0 {
		errs = append(errs, errors.New("at least one user agent is required"))
	}
	return errors.Join(errs...)
}

// ScanConfig converts the settings and the loaded inputs into the scanner's
// immutable run configuration.
func (c *Config) ScanConfig(baseURL string, params, destinations []string, logger *zerolog.Logger) scanner.Config {
	return scanner.Config{
		BaseURL:            baseURL,
		Destinations:       destinations,
		Parameters:         params,
		RequestDelay:       c.Delay,
		MaxRetries:         c.Retries,
		RequestTimeout:     c.Timeout,
		RateLimitDelay:     c.RateLimitDelay,
		MaxRedirects:       c.MaxRedirects,
		MaxConcurrency:     c.Concurrency,
		UserAgents:         c.UserAgents,
		RequestsPerSecond:  c.Rate,
		InsecureSkipVerify: c.Insecure,
		Logger:             logger,
	}
}

// ConfigFilePath returns the default config file path (~/.redirhunt.yaml).
func ConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".redirhunt.yaml"
	}
	return filepath.Join(home, ".redirhunt.yaml")
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("target", "")
	v.SetDefault("target_file", "")
	v.SetDefault("params_file", d.ParamsFile)
	v.SetDefault("payloads_file", d.PayloadsFile)
	v.SetDefault("report_path", d.ReportPath)
	v.SetDefault("report_format", d.ReportFormat)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("delay", d.Delay)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("rate_limit_delay", d.RateLimitDelay)
	v.SetDefault("max_redirects", d.MaxRedirects)
	v.SetDefault("rate", d.Rate)
	v.SetDefault("user_agents", d.UserAgents)
	v.SetDefault("insecure", d.Insecure)
}
