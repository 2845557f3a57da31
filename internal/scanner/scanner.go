// Package scanner is the redirect-probing engine: it builds test requests,
// interprets redirect responses, classifies them and runs the full
// parameter x destination matrix under a concurrency bound.
package scanner

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/buemura/redirhunt/pkg/types"
	"github.com/rs/zerolog"
)

const (
	DefaultRequestDelay   = 1000 * time.Millisecond
	DefaultMaxRetries     = 3
	DefaultRequestTimeout = 10 * time.Second
	DefaultRateLimitDelay = 10 * time.Second
	DefaultMaxRedirects   = 5
	DefaultConcurrency    = 5
)

// DefaultUserAgents is the pool sampled when no agents are configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
}

// ErrEmptySource is wrapped by ConfigError when a list has no usable entries.
var ErrEmptySource = errors.New("no usable entries")

// ConfigError is fatal: it aborts a run before any probe is dispatched.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config is the immutable input of a scan run.
type Config struct {
	BaseURL      string
	Destinations []string
	Parameters   []string

	RequestDelay   time.Duration
	MaxRetries     int
	RequestTimeout time.Duration
	RateLimitDelay time.Duration
	MaxRedirects   int
	MaxConcurrency int
	UserAgents     []string

	// RequestsPerSecond caps the global request rate when > 0.
	RequestsPerSecond  float64
	InsecureSkipVerify bool

	// Transport overrides the HTTP transport; nil builds a default one.
	Transport http.RoundTripper
	Logger    *zerolog.Logger
}

// DefaultConfig returns a Config with documented defaults and no inputs.
func DefaultConfig() Config {
	return Config{
		RequestDelay:   DefaultRequestDelay,
		MaxRetries:     DefaultMaxRetries,
		RequestTimeout: DefaultRequestTimeout,
		RateLimitDelay: DefaultRateLimitDelay,
		MaxRedirects:   DefaultMaxRedirects,
		MaxConcurrency: DefaultConcurrency,
		UserAgents:     DefaultUserAgents,
	}
}

// Validate checks the inputs and fills zero-valued tunables with defaults.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Hostname() == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ConfigError{Source: "base url", Err: fmt.Errorf("%q is not an absolute http(s) URL", c.BaseURL)}
	}
	if len(c.Parameters) == 0 {
		return &ConfigError{Source: "parameters", Err: ErrEmptySource}
	}
	if len(c.Destinations) == 0 {
		return &ConfigError{Source: "destinations", Err: ErrEmptySource}
	}
	if c.RequestDelay < 0 || c.RateLimitDelay < 0 {
		return &ConfigError{Source: "delay", Err: errors.New("delays must not be negative")}
	}
	if c.MaxRetries < 0 {
		return &ConfigError{Source: "retries", Err: fmt.Errorf("got %d, must be >= 0", c.MaxRetries)}
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.RateLimitDelay == 0 {
		c.RateLimitDelay = DefaultRateLimitDelay
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = DefaultUserAgents
	}
	return nil
}

func (c *Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}

// Probe is one concrete test request.
type Probe struct {
	Parameter   string
	Destination string
	Encoding    types.Encoding
}

// Probes expands parameters x destinations x encodings. Parameters form the
// outer loop, destinations the inner one, and each pair yields the raw probe
// before the encoded one.
func Probes(parameters, destinations []string) []Probe {
	probes := make([]Probe, 0, len(parameters)*len(destinations)*len(types.Encodings))
	for _, param := range parameters {
		for _, dest := range destinations {
			for _, enc := range types.Encodings {
				probes = append(probes, Probe{Parameter: param, Destination: dest, Encoding: enc})
			}
		}
	}
	return probes
}

// Verdict is the tag of an Outcome.
type Verdict int

const (
	VerdictNotVulnerable Verdict = iota
	VerdictVulnerable
	VerdictFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictVulnerable:
		return "vulnerable"
	case VerdictFailed:
		return "failed"
	default:
		return "not-vulnerable"
	}
}

// Outcome is the result of executing one Probe. Evidence is set only for
// VerdictVulnerable and Err only for VerdictFailed.
type Outcome struct {
	Probe      Probe
	TestURL    string
	Verdict    Verdict
	StatusCode int
	Attempts   int
	Evidence   *types.Evidence
	Err        error
}
