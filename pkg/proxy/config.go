package proxy

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is sent on every outbound request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

type AllowListConfig struct {
	Match   MatchMode `yaml:"match,omitempty"`
	Domains []string  `yaml:"domains,omitempty"`
}

// Config holds everything a Forwarder needs. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	AllowList AllowListConfig `yaml:"allowlist,omitempty"`
	UserAgent string          `yaml:"user-agent,omitempty"`
	// Timeout bounds the whole outbound exchange. Zero leaves it unbounded.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// CORSOnRejections attaches Access-Control-Allow-Origin to the 400 and
	// 403 replies as well.
	CORSOnRejections bool `yaml:"cors-on-rejections,omitempty"`
	LogURLs          bool `yaml:"log-urls,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		AllowList: AllowListConfig{
			Match:   MatchHost,
			Domains: append([]string(nil), DefaultDomains...),
		},
		UserAgent: DefaultUserAgent,
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("syntax error in config file '%s': %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any of ALLOWED_DOMAINS, DOMAIN_MATCH,
// USER_AGENT, HTTP_TIMEOUT, CORS_ON_REJECTIONS and LOG_URLS that lookup
// returns. HTTP_TIMEOUT is a number of seconds or a Go duration.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	if v, ok := lookup("ALLOWED_DOMAINS"); ok && strings.TrimSpace(v) != "" {
		cfg.AllowList.Domains = strings.Split(v, ",")
	}
	if v, ok := lookup("DOMAIN_MATCH"); ok && v != "" {
		cfg.AllowList.Match = MatchMode(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup("USER_AGENT"); ok && v != "" {
		cfg.UserAgent = v
	}
	if v, ok := lookup("HTTP_TIMEOUT"); ok && v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HTTP_TIMEOUT: %w", err))
		} else {
			cfg.Timeout = d
		}
	}
	if v, ok := lookup("CORS_ON_REJECTIONS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CORS_ON_REJECTIONS: %w", err))
		} else {
			cfg.CORSOnRejections = b
		}
	}
	if v, ok := lookup("LOG_URLS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("LOG_URLS: %w", err))
		} else {
			cfg.LogURLs = b
		}
	}

	return errors.Join(errs...)
}

// Validate reports every configuration problem found.
func (c Config) Validate() error {
	var errs []error
	if _, err := NewAllowList(c.AllowList.Match, c.AllowList.Domains); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		errs = append(errs, errors.New("user-agent must not be empty"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	return errors.Join(errs...)
}

func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
