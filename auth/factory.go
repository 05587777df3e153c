package auth

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// AuthenticatorFactory creates an authenticator from configuration.
type AuthenticatorFactory func(cfg map[string]any) (Authenticator, error)

// Registry manages authenticator factories.
type Registry struct {
	mu             sync.RWMutex
	authenticators map[string]AuthenticatorFactory
}

// NewRegistry creates a new auth registry.
func NewRegistry() *Registry {
	return &Registry{
		authenticators: make(map[string]AuthenticatorFactory),
	}
}

// RegisterAuthenticator adds an authenticator factory.
func (r *Registry) RegisterAuthenticator(name string, factory AuthenticatorFactory) error {
	if name == "" || factory == nil {
		return errors.New("invalid authenticator registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.authenticators[name]; exists {
		return fmt.Errorf("authenticator %q already registered", name)
	}

	r.authenticators[name] = factory
	return nil
}

// CreateAuthenticator instantiates an authenticator by name.
func (r *Registry) CreateAuthenticator(name string, cfg map[string]any) (Authenticator, error) {
	r.mu.RLock()
	factory, ok := r.authenticators[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("authenticator %q not found", name)
	}

	return factory(cfg)
}

// ListAuthenticators returns registered authenticator names.
func (r *Registry) ListAuthenticators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.authenticators))
	for name := range r.authenticators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global auth registry with built-in factories.
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.RegisterAuthenticator("oauth2_password", func(cfg map[string]any) (Authenticator, error) {
		config := PasswordGrantConfig{}

		if tokenURL, ok := cfg["token_url"].(string); ok {
			config.TokenURL = tokenURL
		}
		if authStyle, ok := cfg["auth_style"].(string); ok {
			config.AuthStyle = authStyle
		}
		if scopes, ok := cfg["scopes"].([]string); ok {
			config.Scopes = scopes
		} else if scopes, ok := cfg["scopes"].([]any); ok {
			for _, s := range scopes {
				if str, ok := s.(string); ok {
					config.Scopes = append(config.Scopes, str)
				}
			}
		}

		var err error
		if config.DefaultTTL, err = durationOption(cfg, "default_ttl"); err != nil {
			return nil, err
		}
		if config.Timeout, err = durationOption(cfg, "timeout"); err != nil {
			return nil, err
		}

		return NewPasswordGrantAuthenticator(config), nil
	})
}

// durationOption accepts a time.Duration or a duration string.
func durationOption(cfg map[string]any, key string) (time.Duration, error) {
	switch v := cfg[key].(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		if v == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("invalid %s: unsupported type %T", key, v)
	}
}
