// Package config loads the xbrlmcp server configuration.
//
// Values come from, in increasing precedence: built-in defaults, an
// optional YAML file, and XBRLMCP_* environment variables. A .env file is
// loaded into the environment first when present. Every string value may
// use ${VAR} expansion or a secretref (see package secret).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/xbrlmcp/auth"
	"github.com/jonwraymond/xbrlmcp/observe"
	"github.com/jonwraymond/xbrlmcp/xbrl"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Auth    AuthConfig     `yaml:"auth"`
	XBRL    XBRLConfig     `yaml:"xbrl"`
	Observe observe.Config `yaml:"observe"`
}

// ServerConfig configures the MCP HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Path            string        `yaml:"path"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures the credential exchange and the session cache.
type AuthConfig struct {
	// Authenticator names a factory in auth.DefaultRegistry.
	Authenticator string   `yaml:"authenticator"`
	TokenURL      string   `yaml:"token_url"`
	AuthStyle     string   `yaml:"auth_style"`
	Scopes        []string `yaml:"scopes"`

	// DefaultTTL applies only when the issuer reports no expiry.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// Timeout bounds one exchange at the HTTP client. Zero uses the
	// authenticator's default. The gate itself adds no deadline.
	Timeout time.Duration `yaml:"timeout"`

	// ExpiryLeeway retires cached handles this long before they expire.
	ExpiryLeeway time.Duration `yaml:"expiry_leeway"`

	// CollapseConcurrentAuth shares one exchange between concurrent
	// requests of a session presenting the same credentials.
	CollapseConcurrentAuth bool `yaml:"collapse_concurrent_auth"`
}

// XBRLConfig configures calls to the data API.
type XBRLConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            "0.0.0.0:8081",
			Path:            "/mcp",
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Authenticator:          "oauth2_password",
			TokenURL:               auth.DefaultTokenURL,
			AuthStyle:              "params",
			DefaultTTL:             time.Hour,
			CollapseConcurrentAuth: true,
		},
		XBRL: XBRLConfig{
			BaseURL:         xbrl.DefaultBaseURL,
			Timeout:         30 * time.Second,
			MaxAttempts:     3,
			RetryDelay:      200 * time.Millisecond,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Observe: observe.Config{
			ServiceName: "xbrlmcp",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Validation errors.
var (
	ErrInvalidURL      = errors.New("config: invalid url")
	ErrInvalidPath     = errors.New("config: endpoint path must start with /")
	ErrInvalidDuration = errors.New("config: duration must not be negative")
	ErrInvalidAttempts = errors.New("config: max_attempts must be at least 1")
	ErrMissingAddr     = errors.New("config: server.addr is required")
)

// Validate checks the configuration for values the server cannot start with.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, ErrMissingAddr)
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidPath, c.Server.Path))
	}
	for name, raw := range map[string]string{
		"auth.token_url": c.Auth.TokenURL,
		"xbrl.base_url":  c.XBRL.BaseURL,
	} {
		if err := validateURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidURL, name, err))
		}
	}
	for name, d := range map[string]time.Duration{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"auth.default_ttl":        c.Auth.DefaultTTL,
		"auth.timeout":            c.Auth.Timeout,
		"auth.expiry_leeway":      c.Auth.ExpiryLeeway,
		"xbrl.timeout":            c.XBRL.Timeout,
		"xbrl.retry_delay":        c.XBRL.RetryDelay,
		"xbrl.breaker_reset":      c.XBRL.BreakerReset,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%s", ErrInvalidDuration, name, d))
		}
	}
	if c.XBRL.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidAttempts, c.XBRL.MaxAttempts))
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// AuthenticatorOptions returns the factory options for Auth.Authenticator.
func (c Config) AuthenticatorOptions() map[string]any {
	opts := map[string]any{
		"token_url":   c.Auth.TokenURL,
		"auth_style":  c.Auth.AuthStyle,
		"default_ttl": c.Auth.DefaultTTL,
		"timeout":     c.Auth.Timeout,
	}
	if len(c.Auth.Scopes) > 0 {
		opts["scopes"] = c.Auth.Scopes
	}
	return opts
}
