package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/xbrlmcp/secret"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "XBRLMCP_"

// Loader reads configuration from files and the environment.
type Loader struct {
	dotEnv   []string
	resolver *secret.Resolver
	lookup   func(string) (string, bool)
}

// NewLoader creates a loader that reads ./.env when it exists.
func NewLoader() *Loader {
	return &Loader{
		dotEnv: []string{".env"},
		lookup: os.LookupEnv,
	}
}

// WithDotEnv replaces the .env files to load. No arguments disables .env
// loading. Variables already set in the environment are not overridden.
func (l *Loader) WithDotEnv(files ...string) *Loader {
	l.dotEnv = files
	return l
}

// WithResolver replaces the secret resolver.
func (l *Loader) WithResolver(r *secret.Resolver) *Loader {
	l.resolver = r
	return l
}

// WithLookup replaces os.LookupEnv for XBRLMCP_* overrides.
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookup = lookup
	}
	return l
}

// Load reads the configuration with the default loader. path may be empty.
func Load(path string) (*Config, error) {
	return NewLoader().Load(context.Background(), path)
}

// Load builds, resolves and validates the configuration.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	for _, f := range l.dotEnv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path.
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := l.applyEnv(&cfg); err != nil {
		return nil, err
	}

	resolver := l.resolver
	if resolver == nil {
		resolver = secret.NewResolver()
	}
	if err := resolver.ResolveAll(ctx, map[string]*string{
		"server.addr":    &cfg.Server.Addr,
		"server.path":    &cfg.Server.Path,
		"auth.token_url": &cfg.Auth.TokenURL,
		"xbrl.base_url":  &cfg.XBRL.BaseURL,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type envOverride struct {
	key   string
	apply func(cfg *Config, v string) error
}

func stringVar(get func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*get(c) = v
		return nil
	}
}

func durationVar(get func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*get(c) = d
		return nil
	}
}

func boolVar(get func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*get(c) = b
		return nil
	}
}

func intVar(get func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*get(c) = n
		return nil
	}
}

var envOverrides = []envOverride{
	{"ADDR", stringVar(func(c *Config) *string { return &c.Server.Addr })},
	{"PATH", stringVar(func(c *Config) *string { return &c.Server.Path })},
	{"SHUTDOWN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"TOKEN_URL", stringVar(func(c *Config) *string { return &c.Auth.TokenURL })},
	{"AUTH_STYLE", stringVar(func(c *Config) *string { return &c.Auth.AuthStyle })},
	{"AUTH_SCOPES", func(c *Config, v string) error {
		c.Auth.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
		return nil
	}},
	{"AUTH_DEFAULT_TTL", durationVar(func(c *Config) *time.Duration { return &c.Auth.DefaultTTL })},
	{"AUTH_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Auth.Timeout })},
	{"AUTH_EXPIRY_LEEWAY", durationVar(func(c *Config) *time.Duration { return &c.Auth.ExpiryLeeway })},
	{"COLLAPSE_CONCURRENT_AUTH", boolVar(func(c *Config) *bool { return &c.Auth.CollapseConcurrentAuth })},
	{"API_BASE_URL", stringVar(func(c *Config) *string { return &c.XBRL.BaseURL })},
	{"API_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.XBRL.Timeout })},
	{"API_MAX_ATTEMPTS", intVar(func(c *Config) *int { return &c.XBRL.MaxAttempts })},
	{"LOG_LEVEL", stringVar(func(c *Config) *string { return &c.Observe.Logging.Level })},
	{"TRACING_EXPORTER", func(c *Config, v string) error {
		c.Observe.Tracing.Exporter = v
		c.Observe.Tracing.Enabled = v != "" && v != "none"
		return nil
	}},
	{"METRICS_EXPORTER", func(c *Config, v string) error {
		c.Observe.Metrics.Exporter = v
		c.Observe.Metrics.Enabled = v != "" && v != "none"
		return nil
	}},
}

func (l *Loader) applyEnv(cfg *Config) error {
	var errs []error
	for _, o := range envOverrides {
		v, ok := l.lookup(EnvPrefix + o.key)
		if !ok {
			continue
		}
		if err := o.apply(cfg, strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, o.key, err))
		}
	}
	return errors.Join(errs...)
}
