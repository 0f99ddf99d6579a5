// Package config provides YAML configuration parsing for the hookloop CLI.
//
// This package enables running a set of HTTP pollers from a config file,
// as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	poll_interval: 10s
//
//	pollers:
//	  - name: GitHub API
//	    url: https://api.github.com
//	    timeout: 5s
//	    max_retries: 3
//	    retry_delay: 2s
//	  - name: Feed
//	    url: https://example.com/feed
//	    mode: continuous
//	    require_success: true
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultPollInterval applies when a config omits poll_interval.
const defaultPollInterval = 10 * time.Second

// minPollInterval is the minimum allowed polling interval. This prevents
// accidental DoS of endpoints with overly aggressive polling.
const minPollInterval = 100 * time.Millisecond

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file. Use [Load] or [Parse]
// to create a Config.
type Config struct {
	// PollInterval is the default interval for pollers that do not set
	// their own. Accepts duration strings like "10s", "1m", "500ms".
	// Defaults to 10s.
	PollInterval Duration `yaml:"poll_interval"`

	// Pollers defines the polling sessions to run.
	Pollers []PollerConfig `yaml:"pollers"`
}

// PollerConfig defines a single polling session.
type PollerConfig struct {
	// Name identifies the poller in logs and streamed updates.
	Name string `yaml:"name"`

	// URL is the target URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Mode is the scheduling mode: "interval" (default) or "continuous".
	Mode string `yaml:"mode"`

	// Interval overrides the global poll_interval for this poller.
	Interval Duration `yaml:"interval"`

	// MaxRetries is the retry budget per logical invocation. Defaults
	// to 3 when omitted; 0 surfaces failures immediately.
	MaxRetries *int `yaml:"max_retries"`

	// RetryDelay is the delay between a failed attempt and its retry.
	// Defaults to 1s.
	RetryDelay Duration `yaml:"retry_delay"`

	// Timeout is the per-request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Method is the HTTP method (GET, HEAD, POST). Defaults to GET.
	Method string `yaml:"method"`

	// Headers are custom HTTP headers sent with each request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// RequireSuccess makes non-2xx responses count as failures, so the
	// retry machinery engages on HTTP error statuses.
	RequireSuccess bool `yaml:"require_success"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment values. A reference to an unset variable without a default
// is an error.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URL and header values, defaults
// are applied, and the result is validated.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}

	for i := range cfg.Pollers {
		p := &cfg.Pollers[i]

		expanded, err := expandEnvVars(p.URL)
		if err != nil {
			return nil, fmt.Errorf("poller %q: %w", p.Name, err)
		}
		p.URL = expanded

		for k, v := range p.Headers {
			ev, err := expandEnvVars(v)
			if err != nil {
				return nil, fmt.Errorf("poller %q header %q: %w", p.Name, k, err)
			}
			p.Headers[k] = ev
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks cross-field constraints after defaults are applied.
func (c *Config) validate() error {
	if len(c.Pollers) == 0 {
		return errors.New("at least one poller is required")
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s", minPollInterval)
	}

	seen := make(map[string]bool, len(c.Pollers))
	for _, p := range c.Pollers {
		if p.Name == "" {
			return errors.New("poller name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate poller name: %q", p.Name)
		}
		seen[p.Name] = true

		parsed, err := url.Parse(p.URL)
		if err != nil {
			return fmt.Errorf("poller %q: invalid URL: %w", p.Name, err)
		}
		if parsed.Scheme == "" {
			return fmt.Errorf("poller %q: URL must have a scheme (http:// or https://)", p.Name)
		}

		switch p.Mode {
		case "", "interval", "continuous":
		default:
			return fmt.Errorf("poller %q: mode must be \"interval\" or \"continuous\", got %q", p.Name, p.Mode)
		}

		if p.Interval != 0 && p.Interval.Duration() < minPollInterval {
			return fmt.Errorf("poller %q: interval must be at least %s", p.Name, minPollInterval)
		}
		if p.MaxRetries != nil && *p.MaxRetries < 0 {
			return fmt.Errorf("poller %q: max_retries cannot be negative", p.Name)
		}
		if p.RetryDelay.Duration() < 0 {
			return fmt.Errorf("poller %q: retry_delay cannot be negative", p.Name)
		}
		if p.Timeout.Duration() < 0 {
			return fmt.Errorf("poller %q: timeout cannot be negative", p.Name)
		}
	}
	return nil
}
